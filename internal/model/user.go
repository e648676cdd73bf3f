// Package model はドメインモデルを定義する。
package model

import "time"

// User はフォーラム利用者のアイデンティティを表す。
// ローカル認証（username + password）とフェデレーション認証（Google等）の
// 少なくとも一方の認証手段を持つ。PasswordHashが空の場合はローカル認証不可。
type User struct {
	ID           string
	Username     string
	Email        string
	Name         string
	PasswordHash string

	// 非正規化カウンタ。コラボレータルートがベストエフォートで加算する。
	QuestionsAsked    int
	AnswersGiven      int
	UpvotesReceived   int
	DownvotesReceived int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasLocalCredential はローカル認証手段を持つかどうかを返す。
func (u *User) HasLocalCredential() bool {
	return u.PasswordHash != ""
}

// Identity は外部IdPとの紐付け情報を表す。
// (provider, subject_id) の組はグローバルに一意であり、
// 初回フェデレーションログインの競合はこの一意性制約で解決される。
type Identity struct {
	ID        string
	UserID    string
	Provider  string
	SubjectID string
	CreatedAt time.Time
}

// Session はブラウザエージェントとアイデンティティの紐付けを表す。
// UserIDが空のセッションは匿名（フラッシュメッセージ等のサーバー側状態のみ）。
type Session struct {
	Token         string
	UserID        string
	CreatedAt     time.Time
	ExpiresAt     time.Time
	LastTouchedAt time.Time
}

// Anonymous はセッションがアイデンティティに紐付いていないかどうかを返す。
func (s *Session) Anonymous() bool {
	return s.UserID == ""
}

// Counter はUserの非正規化カウンタの種別を表す。
type Counter string

const (
	// CounterQuestionsAsked は投稿した質問数。
	CounterQuestionsAsked Counter = "questions_asked"
	// CounterAnswersGiven は投稿した回答数。
	CounterAnswersGiven Counter = "answers_given"
	// CounterUpvotesReceived は受け取ったアップボート数。
	CounterUpvotesReceived Counter = "upvotes_received"
	// CounterDownvotesReceived は受け取ったダウンボート数。
	CounterDownvotesReceived Counter = "downvotes_received"
)

// Flash はセッションに蓄積された一回限りの表示メッセージを表す。
// 読み出しと同時にクリアされる（exactly-once表示）。
type Flash struct {
	Success []string `json:"success,omitempty"`
	Error   []string `json:"error,omitempty"`
}

// Empty はメッセージが1件もないかどうかを返す。
func (f *Flash) Empty() bool {
	return f == nil || (len(f.Success) == 0 && len(f.Error) == 0)
}
