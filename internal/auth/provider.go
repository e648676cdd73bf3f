// Package auth はローカル認証、フェデレーション認証、セッション管理を提供する。
package auth

import "context"

// ProfileClaim はIdPが認証成功時に発行するプロフィール属性を表す。
// 一度のアイデンティティ解決に使用した後は破棄され、永続化されない。
type ProfileClaim struct {
	Provider  string // "google" 等
	SubjectID string // IdP内で安定したユーザー識別子
	Name      string
	Emails    []string // 検証済みメールアドレスのみ。先頭がプライマリ。
}

// PrimaryEmail はプライマリの検証済みメールアドレスを返す。
// IdPが検証済みメールアドレスを提供しなかった場合は空文字列を返す。
func (c *ProfileClaim) PrimaryEmail() string {
	if len(c.Emails) == 0 {
		return ""
	}
	return c.Emails[0]
}

// Provider はフェデレーション認証プロバイダーのインターフェース。
// コールバック継続ではなく、initiate / complete の明示的な2ステップで表現する。
// 将来的に複数IdP（Google, GitHub等）に対応するための抽象化。
type Provider interface {
	// LoginURL は認可リクエストのリダイレクト先URLを生成する。
	LoginURL(state string) string

	// Exchange は認可コードをトークンに交換し、プロフィール属性を取得する。
	// IdPへのネットワーク呼び出しはタイムアウトの対象であり、失敗時に
	// リトライは行わない（ユーザーがログインをやり直す）。
	Exchange(ctx context.Context, code string) (*ProfileClaim, error)
}
