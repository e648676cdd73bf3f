package auth

import (
	"context"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/askboard/internal/model"
	"github.com/hitoshi/askboard/internal/repository"
)

// dummyHash は"unknown user"パスと"wrong password"パスのタイミング差を
// 均すためのダミーbcryptハッシュ。照合は必ず失敗する。
var dummyHash = []byte("$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy")

// Verifier はローカル資格情報（username + password）の検証を提供する。
type Verifier struct {
	users repository.UserRepository
}

// NewVerifier はVerifierを生成する。
func NewVerifier(users repository.UserRepository) *Verifier {
	return &Verifier{users: users}
}

// Verify はユーザー名とパスワードを検証し、一致したユーザーを返す。
// ユーザー名不明・パスワード不一致のどちらでも同一のInvalidCredentialsを返し、
// ダミーハッシュ照合によりタイミング差も露出させない。
func (v *Verifier) Verify(ctx context.Context, username, password string) (*model.User, error) {
	user, err := v.users.FindByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	hash := dummyHash
	if user != nil && user.HasLocalCredential() {
		hash = []byte(user.PasswordHash)
	}

	// bcrypt自体が定数時間比較を行う。ユーザー不在時もダミー照合を実行する。
	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
		return nil, model.NewInvalidCredentialsError()
	}
	if user == nil || !user.HasLocalCredential() {
		return nil, model.NewInvalidCredentialsError()
	}

	return user, nil
}

// HashPassword はパスワードをbcryptでハッシュ化する。ローカル登録時に使用する。
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}
