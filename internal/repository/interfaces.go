// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/askboard/internal/model"
)

// UserRepository はユーザーアイデンティティの永続化インターフェース（Identity Store）。
// Userレコードへの書き込みはこのインターフェース経由でのみ行う。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByUsername はユーザー名でユーザーを検索する。見つからない場合はnilを返す。
	FindByUsername(ctx context.Context, username string) (*model.User, error)

	// FindByFederatedID は(provider, subject_id)でユーザーを検索する。
	// 見つからない場合はnilを返す。
	FindByFederatedID(ctx context.Context, provider, subjectID string) (*model.User, error)

	// Create はユーザーを作成する。identityがnilでない場合は同一トランザクションで
	// identitiesレコードも作成する。username / email / (provider, subject_id) の
	// いずれかが既存レコードと衝突する場合はConflictのAppErrorを返す。
	// 一意性制約はストア側でアトミックに検査される（find-then-createの競合はここで解決する）。
	Create(ctx context.Context, user *model.User, identity *model.Identity) error

	// IncrementCounter は非正規化カウンタをdeltaだけ加算する。
	// 対象ユーザーが存在しない場合はエラーとせず何もしない（ベストエフォート）。
	IncrementCounter(ctx context.Context, userID string, counter model.Counter, delta int) error
}

// SessionRepository はセッションデータの永続化インターフェース。
// PostgreSQL実装とRedis実装が同一インターフェースを満たす。
type SessionRepository interface {
	// Create はセッションを作成する。ExpiresAtは作成時に固定され、以後変更されない。
	Create(ctx context.Context, session *model.Session) error

	// FindByToken は指定トークンのセッションを取得する。
	// 存在しない・期限切れの場合はエラーではなくnilを返す（ソフトフェイル）。
	FindByToken(ctx context.Context, token string) (*model.Session, error)

	// Bind は匿名セッションにユーザーIDを紐付ける（Unbound -> Bound）。
	Bind(ctx context.Context, token, userID string) error

	// Touch は最終アクセス透かしがthresholdより古い場合のみ更新する。
	// 新しい場合は書き込みを行わない（リクエスト毎の書き込み増幅を避ける）。
	// 同一トークンへの並行Touchはlast-writer-winsで冪等。
	Touch(ctx context.Context, token string, threshold time.Duration) error

	// Delete はセッションを削除する。存在しないトークンはエラーとしない（冪等）。
	Delete(ctx context.Context, token string) error

	// DeleteExpired は期限切れセッションを一括削除し、削除件数を返す。
	// バックグラウンドスイープ用。
	DeleteExpired(ctx context.Context) (int64, error)

	// AppendFlash はセッションにフラッシュメッセージを追記する。
	// kindは"success"または"error"。
	AppendFlash(ctx context.Context, token, kind, message string) error

	// ConsumeFlash は蓄積されたフラッシュメッセージを取得し、同時にクリアする。
	// 取得とクリアは単一のアトミック操作で行う（exactly-once表示）。
	// セッションが存在しない場合は空のFlashを返す。
	ConsumeFlash(ctx context.Context, token string) (*model.Flash, error)
}

// QuestionRepository は質問データの永続化インターフェース。
type QuestionRepository interface {
	// Create は質問を作成する。
	Create(ctx context.Context, question *model.Question) error

	// FindByID は指定IDの質問を投稿者名付きで取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.QuestionWithAuthor, error)

	// ListRecent は新着順の質問一覧を投稿者名・回答数付きで取得する。
	ListRecent(ctx context.Context, limit int) ([]model.QuestionWithAuthor, error)
}

// AnswerRepository は回答データの永続化インターフェース。
type AnswerRepository interface {
	// Create は回答を作成する。
	Create(ctx context.Context, answer *model.Answer) error

	// FindByID は指定IDの回答を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Answer, error)

	// ListByQuestion は質問に対する回答一覧を投票集計・投稿者名付きで取得する。
	ListByQuestion(ctx context.Context, questionID string) ([]model.AnswerWithAuthor, error)
}

// VoteRepository は投票データの永続化インターフェース。
type VoteRepository interface {
	// Upsert は投票を冪等にUPSERTし、上書き前の値を返す（初回投票は0）。
	// 呼び出し側は前回値との差分からカウンタ調整量を算出する。
	Upsert(ctx context.Context, vote *model.Vote) (previous model.VoteValue, err error)
}
