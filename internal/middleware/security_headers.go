package middleware

import "net/http"

// NewSecurityHeadersMiddleware は全ページ共通のセキュリティヘッダーを付与する
// ミドルウェアを返す。askboardはサーバーレンダリングのHTMLフォームが中心の
// ため、フレーム埋め込み（投票・回答フォームのクリックジャッキング）と
// MIMEスニッフィングを一律に拒否する。
func NewSecurityHeadersMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			// 質問URLに含まれるIDを外部サイトへ漏らさない
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			w.Header().Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
			next.ServeHTTP(w, r)
		})
	}
}
