// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"

	"github.com/hitoshi/askboard/internal/middleware"
	"github.com/hitoshi/askboard/internal/model"
	"github.com/hitoshi/askboard/internal/render"
)

const oauthStateCookie = "oauth_state"

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	LoginURL(state string) string
	LoginLocal(ctx context.Context, currentToken, username, password string) (string, error)
	RegisterLocal(ctx context.Context, currentToken, username, email, name, password string) (string, error)
	HandleCallback(ctx context.Context, currentToken, code string) (string, error)
	Logout(ctx context.Context, token string) error
	EnsureSession(ctx context.Context, token string) (string, error)
	AddFlash(ctx context.Context, token, kind, message string) error
	ConsumeFlash(ctx context.Context, token string) (*model.Flash, error)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	BaseURL      string
	CookieSecure bool
	Cookie       middleware.SessionCookie
}

// AuthHandler はログイン・登録・OAuth認証関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	engine  *render.Engine
	config  AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, engine *render.Engine, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service: service,
		engine:  engine,
		config:  config,
	}
}

// ShowLogin はログインフォームを表示する。
// GET /login
func (h *AuthHandler) ShowLogin(w http.ResponseWriter, r *http.Request) {
	if middleware.CurrentUserFromContext(r.Context()) != nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	data := h.pageData(r, "ログイン")
	h.engine.Render(w, http.StatusOK, "login", data)
}

// Login はローカル認証でログインする。
// POST /login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	username := r.PostFormValue("username")
	password := r.PostFormValue("password")

	token, err := h.service.LoginLocal(r.Context(), middleware.SessionTokenFromContext(r.Context()), username, password)
	if err != nil {
		h.flashAndRedirect(w, r, "error", model.AsAppError(err).Message, "/login")
		return
	}

	h.config.Cookie.Write(w, token)
	h.flashTo(w, r, token, "success", "ログインしました。")
	http.Redirect(w, r, middleware.ConsumeReturnTo(w, r, h.config.CookieSecure), http.StatusSeeOther)
}

// ShowRegister は新規登録フォームを表示する。
// GET /register
func (h *AuthHandler) ShowRegister(w http.ResponseWriter, r *http.Request) {
	if middleware.CurrentUserFromContext(r.Context()) != nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	data := h.pageData(r, "新規登録")
	h.engine.Render(w, http.StatusOK, "register", data)
}

// Register はローカル資格情報で新規ユーザーを登録する。
// POST /register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	username := r.PostFormValue("username")
	email := r.PostFormValue("email")
	name := r.PostFormValue("name")
	password := r.PostFormValue("password")

	if username == "" || email == "" || name == "" || password == "" {
		h.flashAndRedirect(w, r, "error", "すべての項目を入力してください。", "/register")
		return
	}

	token, err := h.service.RegisterLocal(r.Context(), middleware.SessionTokenFromContext(r.Context()), username, email, name, password)
	if err != nil {
		h.flashAndRedirect(w, r, "error", model.AsAppError(err).Message, "/register")
		return
	}

	h.config.Cookie.Write(w, token)
	h.flashTo(w, r, token, "success", "登録が完了しました。ようこそ！")
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// GoogleLogin はGoogle OAuthフローを開始する。
// GET /auth/google/login
func (h *AuthHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	state, err := generateState()
	if err != nil {
		slog.Error("failed to generate oauth state", slog.String("error", err.Error()))
		h.engine.RenderError(w, model.NewInternalError(), middleware.CurrentUserFromContext(r.Context()))
		return
	}

	// stateをCookieに保存（CSRF対策）
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10分
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.service.LoginURL(state), http.StatusTemporaryRedirect)
}

// GoogleCallback はOAuthコールバックを処理する。
// GET /auth/google/callback?code=xxx&state=yyy
func (h *AuthHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	// 1. stateの検証（CSRF対策）
	state := r.URL.Query().Get("state")
	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || state == "" || stateCookie.Value != state {
		slog.Warn("oauth state mismatch")
		h.flashAndRedirect(w, r, "error", "認証フローの検証に失敗しました。もう一度お試しください。", "/login")
		return
	}

	// stateクッキーを削除
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	// 2. 認可コードの取得
	code := r.URL.Query().Get("code")
	if code == "" {
		h.flashAndRedirect(w, r, "error", "認可コードがありません。もう一度お試しください。", "/login")
		return
	}

	// 3. 認証処理
	token, err := h.service.HandleCallback(r.Context(), middleware.SessionTokenFromContext(r.Context()), code)
	if err != nil {
		h.flashAndRedirect(w, r, "error", model.AsAppError(err).Message, "/login")
		return
	}

	// 4. セッションCookieを設定して元のページへ
	h.config.Cookie.Write(w, token)
	h.flashTo(w, r, token, "success", "ログインしました。")
	http.Redirect(w, r, middleware.ConsumeReturnTo(w, r, h.config.CookieSecure), http.StatusSeeOther)
}

// Logout はセッションを破棄する。
// POST /logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := middleware.SessionTokenFromContext(r.Context())
	if token != "" {
		if err := h.service.Logout(r.Context(), token); err != nil {
			// ログアウト失敗してもCookieはクリアする
			slog.Error("failed to logout", slog.String("error", err.Error()))
		}
	}

	h.config.Cookie.Clear(w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// pageData はフラッシュメッセージを消費して共通ページデータを構築する。
func (h *AuthHandler) pageData(r *http.Request, title string) *render.PageData {
	return buildPageData(r, h.service, title)
}

// flashAndRedirect はフラッシュメッセージを積んでリダイレクトする。
// セッション未確立の場合は匿名セッションを発行してクッキーを設定する。
func (h *AuthHandler) flashAndRedirect(w http.ResponseWriter, r *http.Request, kind, message, location string) {
	token, err := h.service.EnsureSession(r.Context(), middleware.SessionTokenFromContext(r.Context()))
	if err != nil {
		slog.Error("failed to ensure session", slog.String("error", err.Error()))
		http.Redirect(w, r, location, http.StatusSeeOther)
		return
	}
	h.config.Cookie.Write(w, token)
	h.flashTo(w, r, token, kind, message)
	http.Redirect(w, r, location, http.StatusSeeOther)
}

// flashTo は指定セッションにフラッシュメッセージを積む。失敗はログのみ。
func (h *AuthHandler) flashTo(w http.ResponseWriter, r *http.Request, token, kind, message string) {
	if err := h.service.AddFlash(r.Context(), token, kind, message); err != nil {
		slog.Error("failed to add flash message", slog.String("error", err.Error()))
	}
}

// generateState はCSRF対策用のランダムなstate値を生成する。
func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
