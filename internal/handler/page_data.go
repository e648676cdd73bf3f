package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/askboard/internal/middleware"
	"github.com/hitoshi/askboard/internal/model"
	"github.com/hitoshi/askboard/internal/render"
)

// FlashConsumer はフラッシュメッセージの消費に必要なインターフェース。
// auth.Serviceの部分集合として定義する。
type FlashConsumer interface {
	ConsumeFlash(ctx context.Context, token string) (*model.Flash, error)
}

// buildPageData はリクエストコンテキストから共通ページデータを構築する。
// セッションに蓄積されたフラッシュメッセージはここで消費される（exactly-once表示）。
func buildPageData(r *http.Request, flashes FlashConsumer, title string) *render.PageData {
	ctx := r.Context()
	data := &render.PageData{
		Title:       title,
		CurrentUser: middleware.CurrentUserFromContext(ctx),
		CSRFToken:   middleware.CSRFTokenFromContext(ctx),
	}

	token := middleware.SessionTokenFromContext(ctx)
	if token == "" {
		return data
	}

	flash, err := flashes.ConsumeFlash(ctx, token)
	if err != nil {
		// フラッシュの取得失敗はページ表示を妨げない
		slog.Error("failed to consume flash messages", slog.String("error", err.Error()))
		return data
	}
	if !flash.Empty() {
		data.Success = flash.Success
		data.Error = flash.Error
	}

	return data
}
