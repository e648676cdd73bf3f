package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/askboard/internal/middleware"
	"github.com/hitoshi/askboard/internal/model"
	"github.com/hitoshi/askboard/internal/render"
)

// ForumServiceInterface は質問・回答ハンドラーが必要とするサービスインターフェース。
type ForumServiceInterface interface {
	Ask(ctx context.Context, authorID, title, body string) (*model.Question, error)
	Get(ctx context.Context, questionID string) (*model.QuestionWithAuthor, []model.AnswerWithAuthor, error)
	ListRecent(ctx context.Context) ([]model.QuestionWithAuthor, error)
	Answer(ctx context.Context, authorID, questionID, body string) (*model.Answer, error)
	Vote(ctx context.Context, userID, answerID string, value model.VoteValue) (string, error)
}

// FlashWriter はフラッシュメッセージの書き込みに必要なインターフェース。
// auth.Serviceの部分集合として定義する。
type FlashWriter interface {
	FlashConsumer
	EnsureSession(ctx context.Context, token string) (string, error)
	AddFlash(ctx context.Context, token, kind, message string) error
}

// questionPage は質問詳細ページのテンプレートデータ。
type questionPage struct {
	Question *model.QuestionWithAuthor
	Answers  []model.AnswerWithAuthor
}

// QuestionHandler は質問関連のHTTPハンドラー。
type QuestionHandler struct {
	forum   ForumServiceInterface
	flashes FlashWriter
	engine  *render.Engine
	cookie  middleware.SessionCookie
}

// NewQuestionHandler はQuestionHandlerを生成する。
func NewQuestionHandler(forum ForumServiceInterface, flashes FlashWriter, engine *render.Engine, cookie middleware.SessionCookie) *QuestionHandler {
	return &QuestionHandler{
		forum:   forum,
		flashes: flashes,
		engine:  engine,
		cookie:  cookie,
	}
}

// Home は新着質問の一覧を表示する。
// GET /
func (h *QuestionHandler) Home(w http.ResponseWriter, r *http.Request) {
	questions, err := h.forum.ListRecent(r.Context())
	if err != nil {
		slog.Error("failed to list questions", slog.String("error", err.Error()))
		h.engine.RenderError(w, err, middleware.CurrentUserFromContext(r.Context()))
		return
	}

	data := buildPageData(r, h.flashes, "新着の質問")
	data.Data = questions
	h.engine.Render(w, http.StatusOK, "home", data)
}

// ShowNew は質問投稿フォームを表示する。
// GET /questions/new
func (h *QuestionHandler) ShowNew(w http.ResponseWriter, r *http.Request) {
	data := buildPageData(r, h.flashes, "質問する")
	h.engine.Render(w, http.StatusOK, "new_question", data)
}

// Create は質問を投稿する。
// POST /questions
func (h *QuestionHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := middleware.CurrentUserFromContext(r.Context())
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	question, err := h.forum.Ask(r.Context(), user.ID, r.PostFormValue("title"), r.PostFormValue("body"))
	if err != nil {
		h.flashAndRedirect(w, r, "error", model.AsAppError(err).Message, "/questions/new")
		return
	}

	h.flashAndRedirect(w, r, "success", "質問を投稿しました。", "/questions/"+question.ID)
}

// Show は質問と回答一覧を表示する。
// GET /questions/{id}
func (h *QuestionHandler) Show(w http.ResponseWriter, r *http.Request) {
	questionID := chi.URLParam(r, "id")

	question, answers, err := h.forum.Get(r.Context(), questionID)
	if err != nil {
		if !model.IsCode(err, model.ErrCodeNotFound) {
			slog.Error("failed to load question", slog.String("error", err.Error()))
		}
		h.engine.RenderError(w, err, middleware.CurrentUserFromContext(r.Context()))
		return
	}

	data := buildPageData(r, h.flashes, question.Title)
	data.Data = &questionPage{Question: question, Answers: answers}
	h.engine.Render(w, http.StatusOK, "question", data)
}

// flashAndRedirect はフラッシュメッセージを積んでリダイレクトする。
func (h *QuestionHandler) flashAndRedirect(w http.ResponseWriter, r *http.Request, kind, message, location string) {
	flashAndRedirect(w, r, h.flashes, h.cookie, kind, message, location)
}

// flashAndRedirect はフラッシュメッセージを積んでリダイレクトする共通処理。
// セッション未確立の場合は匿名セッションを発行してクッキーを設定する。
func flashAndRedirect(w http.ResponseWriter, r *http.Request, flashes FlashWriter, cookie middleware.SessionCookie, kind, message, location string) {
	token, err := flashes.EnsureSession(r.Context(), middleware.SessionTokenFromContext(r.Context()))
	if err != nil {
		slog.Error("failed to ensure session", slog.String("error", err.Error()))
		http.Redirect(w, r, location, http.StatusSeeOther)
		return
	}
	cookie.Write(w, token)
	if err := flashes.AddFlash(r.Context(), token, kind, message); err != nil {
		slog.Error("failed to add flash message", slog.String("error", err.Error()))
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
}
