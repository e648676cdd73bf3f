package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/askboard/internal/model"
	"github.com/hitoshi/askboard/internal/repository"
)

// Resolver はプロフィールクレームをローカルアイデンティティに解決する。
// 未登録のsubject idに対してはユーザーを新規作成する（lookup-or-create）。
type Resolver struct {
	users repository.UserRepository
}

// NewResolver はResolverを生成する。
func NewResolver(users repository.UserRepository) *Resolver {
	return &Resolver{users: users}
}

// Resolve はクレームを検証し、対応するユーザーを返す。
//
// 既存subject idの場合はそのユーザーをそのまま返す（2回目以降のログインで
// プロフィール属性の再同期は行わない）。未登録の場合はユーザー名をメール
// アドレスとして新規作成する。
//
// 同一の未登録subject idに対する並行Resolveはストアの一意性制約で解決する:
// Createが制約違反で失敗した場合は「他のリクエストが先に作成した」とみなし、
// 再読込して既存ユーザーを返す。再読込でも見つからない場合は、同じメール
// アドレスが別経路（ローカル登録等）で既に使用されている衝突であり、
// 自動リンクも二重作成も行わず明示的に拒否する。
func (r *Resolver) Resolve(ctx context.Context, claim *ProfileClaim) (*model.User, error) {
	// 1. プライマリ検証済みメールアドレスの確認
	email := claim.PrimaryEmail()
	if email == "" {
		return nil, model.NewMissingEmailClaimError()
	}

	// 2. subject idで既存ユーザーを検索
	user, err := r.users.FindByFederatedID(ctx, claim.Provider, claim.SubjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by federated ID: %w", err)
	}
	if user != nil {
		return user, nil
	}

	// 3. 新規ユーザーとidentityを作成（ユーザー名はメールアドレス、カウンタはゼロ）
	now := time.Now()
	newUser := &model.User{
		ID:        uuid.New().String(),
		Username:  email,
		Email:     email,
		Name:      claim.Name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	identity := &model.Identity{
		ID:        uuid.New().String(),
		UserID:    newUser.ID,
		Provider:  claim.Provider,
		SubjectID: claim.SubjectID,
		CreatedAt: now,
	}

	err = r.users.Create(ctx, newUser, identity)
	if err == nil {
		slog.Info("new user created via federated login",
			slog.String("user_id", newUser.ID),
			slog.String("provider", claim.Provider),
		)
		return newUser, nil
	}
	if !model.IsConflict(err) {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	// 4. 一意性制約違反: 並行リクエストが先に作成した可能性があるため再読込する
	user, findErr := r.users.FindByFederatedID(ctx, claim.Provider, claim.SubjectID)
	if findErr != nil {
		return nil, fmt.Errorf("failed to re-read user after conflict: %w", findErr)
	}
	if user != nil {
		return user, nil
	}

	// 衝突の原因はsubject idではなくメールアドレス/ユーザー名。
	// 別経路で登録済みのアカウントを暗黙に上書き・複製しない。
	slog.Warn("federated login rejected: email already owned by another account",
		slog.String("provider", claim.Provider),
		slog.String("subject_id", claim.SubjectID),
	)
	return nil, model.NewConflictError(
		"このメールアドレスは既に別の方法で登録されています。ユーザー名とパスワードでログインしてください。")
}
