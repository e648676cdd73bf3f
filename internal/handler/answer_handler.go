package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/askboard/internal/middleware"
	"github.com/hitoshi/askboard/internal/model"
	"github.com/hitoshi/askboard/internal/render"
)

// AnswerHandler は回答・投票関連のHTTPハンドラー。
type AnswerHandler struct {
	forum   ForumServiceInterface
	flashes FlashWriter
	engine  *render.Engine
	cookie  middleware.SessionCookie
}

// NewAnswerHandler はAnswerHandlerを生成する。
func NewAnswerHandler(forum ForumServiceInterface, flashes FlashWriter, engine *render.Engine, cookie middleware.SessionCookie) *AnswerHandler {
	return &AnswerHandler{
		forum:   forum,
		flashes: flashes,
		engine:  engine,
		cookie:  cookie,
	}
}

// Create は質問に回答を投稿する。
// POST /questions/{id}/answers
func (h *AnswerHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := middleware.CurrentUserFromContext(r.Context())
	questionID := chi.URLParam(r, "id")

	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	_, err := h.forum.Answer(r.Context(), user.ID, questionID, r.PostFormValue("body"))
	if err != nil {
		if model.IsCode(err, model.ErrCodeNotFound) {
			h.engine.RenderError(w, err, user)
			return
		}
		flashAndRedirect(w, r, h.flashes, h.cookie, "error", model.AsAppError(err).Message, "/questions/"+questionID)
		return
	}

	flashAndRedirect(w, r, h.flashes, h.cookie, "success", "回答を投稿しました。", "/questions/"+questionID)
}

// Vote は回答に投票する。
// POST /answers/{id}/vote
func (h *AnswerHandler) Vote(w http.ResponseWriter, r *http.Request) {
	user := middleware.CurrentUserFromContext(r.Context())
	answerID := chi.URLParam(r, "id")

	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	var value model.VoteValue
	switch r.PostFormValue("value") {
	case "up":
		value = model.VoteUp
	case "down":
		value = model.VoteDown
	default:
		h.engine.RenderError(w, model.NewValidationError("投票値が不正です。"), user)
		return
	}

	questionID, err := h.forum.Vote(r.Context(), user.ID, answerID, value)
	if err != nil {
		h.engine.RenderError(w, err, user)
		return
	}

	http.Redirect(w, r, "/questions/"+questionID, http.StatusSeeOther)
}
