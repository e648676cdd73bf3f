// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"log/slog"
	"net"
	"net/http"

	"github.com/hitoshi/askboard/internal/model"
)

// SessionCookieName はセッショントークンを保持するHTTP Only Cookieの名前。
const SessionCookieName = "askboard_session"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	currentUserContextKey  = contextKey("current_user")
	sessionTokenContextKey = contextKey("session_token")
)

// UserResolver はセッショントークンから現在のユーザーを解決するインターフェース。
// auth.Serviceの部分集合として定義する。
type UserResolver interface {
	CurrentUser(ctx context.Context, token string) (*model.User, error)
}

// NewSessionMiddleware はHTTP Only Cookieからセッションを復元し、
// 現在のユーザーとセッショントークンをリクエストコンテキストに注入する
// ミドルウェアを返す。
// 未認証・期限切れ・トークン不正はすべて匿名リクエストとしてそのまま通す。
// 保護が必要なルートにはNewRequireLoginMiddlewareを重ねる。
func NewSessionMiddleware(resolver UserResolver) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), sessionTokenContextKey, cookie.Value)

			user, err := resolver.CurrentUser(ctx, cookie.Value)
			if err != nil {
				// ストア障害時も匿名として処理を続行する
				slog.Error("failed to resolve session user",
					slog.String("error", err.Error()),
				)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}
			if user != nil {
				ctx = context.WithValue(ctx, currentUserContextKey, user)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// FlashSessions はログイン要求時のフラッシュメッセージ書き込みに必要なインターフェース。
// auth.Serviceの部分集合として定義する。
type FlashSessions interface {
	EnsureSession(ctx context.Context, token string) (string, error)
	AddFlash(ctx context.Context, token, kind, message string) error
}

// NewRequireLoginMiddleware は未認証リクエストをログインページへ
// リダイレクトするミドルウェアを返す。SessionMiddlewareの後に配置する。
// リダイレクト前にフラッシュメッセージを積むため、必要に応じて
// 匿名セッションを発行しクッキーを再設定する。
func NewRequireLoginMiddleware(sessions FlashSessions, cookies SessionCookie) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if CurrentUserFromContext(r.Context()) != nil {
				next.ServeHTTP(w, r)
				return
			}

			// ログイン完了後に元のページへ戻せるよう、要求されたパスを記録する
			if r.Method == http.MethodGet {
				SaveReturnTo(w, r.URL.RequestURI(), cookies.Secure)
			}

			token, err := sessions.EnsureSession(r.Context(), SessionTokenFromContext(r.Context()))
			if err != nil {
				slog.Error("failed to ensure session for login redirect",
					slog.String("error", err.Error()),
				)
				http.Redirect(w, r, "/login", http.StatusSeeOther)
				return
			}
			if err := sessions.AddFlash(r.Context(), token, "error", "ログインが必要です。"); err != nil {
				slog.Error("failed to add flash message",
					slog.String("error", err.Error()),
				)
			}

			cookies.Write(w, token)
			http.Redirect(w, r, "/login", http.StatusSeeOther)
		})
	}
}

// CurrentUserFromContext はリクエストコンテキストから現在のユーザーを取得する。
// 匿名リクエストの場合はnilを返す。
func CurrentUserFromContext(ctx context.Context) *model.User {
	user, ok := ctx.Value(currentUserContextKey).(*model.User)
	if !ok {
		return nil
	}
	return user
}

// SessionTokenFromContext はリクエストコンテキストからセッショントークンを取得する。
// クッキーが送信されていない場合は空文字列を返す。
func SessionTokenFromContext(ctx context.Context) string {
	token, ok := ctx.Value(sessionTokenContextKey).(string)
	if !ok {
		return ""
	}
	return token
}

// ContextWithCurrentUser はコンテキストにユーザーを注入する。テスト用。
func ContextWithCurrentUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, currentUserContextKey, user)
}

// ContextWithSessionToken はコンテキストにセッショントークンを注入する。テスト用。
func ContextWithSessionToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, sessionTokenContextKey, token)
}

// ClientKey はレート制限のキーを返す。
// セッションが確立していればそのトークン、なければ接続元IPアドレスを使用する。
func ClientKey(r *http.Request) string {
	if token := SessionTokenFromContext(r.Context()); token != "" {
		return token
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
