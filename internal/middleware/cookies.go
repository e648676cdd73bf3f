package middleware

import (
	"net/http"
	"strings"
)

// SessionCookie はセッショントークンCookieの書き込み設定を保持する。
// ミドルウェアと認証ハンドラーの双方から使用される。
type SessionCookie struct {
	Domain string
	Secure bool
	MaxAge int // 秒。セッションの絶対有効期間と揃える
}

// Write はセッショントークンをHTTP Only Cookieとして設定する。
func (c SessionCookie) Write(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		Domain:   c.Domain,
		MaxAge:   c.MaxAge,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Clear はセッションCookieを削除する。ログアウト時に使用する。
func (c SessionCookie) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   c.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// returnToCookieName はログイン後に戻るページのパスを保持するCookieの名前。
const returnToCookieName = "askboard_return_to"

// SaveReturnTo はログイン完了後に戻るべきパスをCookieに記録する。
// サイト内パス以外は記録しない。
func SaveReturnTo(w http.ResponseWriter, target string, secure bool) {
	if !isLocalPath(target) {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     returnToCookieName,
		Value:    target,
		Path:     "/",
		MaxAge:   600, // 10分
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ConsumeReturnTo は記録された戻り先パスを取り出し、Cookieを削除する。
// 記録がない場合やサイト内パスでない場合は"/"を返す。
func ConsumeReturnTo(w http.ResponseWriter, r *http.Request, secure bool) string {
	cookie, err := r.Cookie(returnToCookieName)
	if err != nil || cookie.Value == "" {
		return "/"
	}
	http.SetCookie(w, &http.Cookie{
		Name:     returnToCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
	if !isLocalPath(cookie.Value) {
		return "/"
	}
	return cookie.Value
}

// isLocalPath はオープンリダイレクト防止のため、同一サイト内のパスのみを許可する。
func isLocalPath(target string) bool {
	if !strings.HasPrefix(target, "/") {
		return false
	}
	return !strings.HasPrefix(target, "//") && !strings.HasPrefix(target, "/\\")
}
