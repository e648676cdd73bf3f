package handler

import (
	"context"
	"testing"

	"github.com/hitoshi/askboard/internal/model"
	"github.com/hitoshi/askboard/internal/render"
)

// --- モック定義（handler配下のテストで共用） ---

type mockAuthService struct {
	loginURLFn       func(state string) string
	loginLocalFn     func(ctx context.Context, currentToken, username, password string) (string, error)
	registerLocalFn  func(ctx context.Context, currentToken, username, email, name, password string) (string, error)
	handleCallbackFn func(ctx context.Context, currentToken, code string) (string, error)
	logoutFn         func(ctx context.Context, token string) error
	ensureSessionFn  func(ctx context.Context, token string) (string, error)
	addFlashFn       func(ctx context.Context, token, kind, message string) error
	consumeFlashFn   func(ctx context.Context, token string) (*model.Flash, error)
}

func (m *mockAuthService) LoginURL(state string) string {
	if m.loginURLFn != nil {
		return m.loginURLFn(state)
	}
	return "https://idp.example.com/auth?state=" + state
}

func (m *mockAuthService) LoginLocal(ctx context.Context, currentToken, username, password string) (string, error) {
	if m.loginLocalFn != nil {
		return m.loginLocalFn(ctx, currentToken, username, password)
	}
	return "session-token", nil
}

func (m *mockAuthService) RegisterLocal(ctx context.Context, currentToken, username, email, name, password string) (string, error) {
	if m.registerLocalFn != nil {
		return m.registerLocalFn(ctx, currentToken, username, email, name, password)
	}
	return "session-token", nil
}

func (m *mockAuthService) HandleCallback(ctx context.Context, currentToken, code string) (string, error) {
	if m.handleCallbackFn != nil {
		return m.handleCallbackFn(ctx, currentToken, code)
	}
	return "session-token", nil
}

func (m *mockAuthService) Logout(ctx context.Context, token string) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, token)
	}
	return nil
}

func (m *mockAuthService) EnsureSession(ctx context.Context, token string) (string, error) {
	if m.ensureSessionFn != nil {
		return m.ensureSessionFn(ctx, token)
	}
	if token != "" {
		return token, nil
	}
	return "anon-token", nil
}

func (m *mockAuthService) AddFlash(ctx context.Context, token, kind, message string) error {
	if m.addFlashFn != nil {
		return m.addFlashFn(ctx, token, kind, message)
	}
	return nil
}

func (m *mockAuthService) ConsumeFlash(ctx context.Context, token string) (*model.Flash, error) {
	if m.consumeFlashFn != nil {
		return m.consumeFlashFn(ctx, token)
	}
	return &model.Flash{}, nil
}

type mockForumService struct {
	askFn        func(ctx context.Context, authorID, title, body string) (*model.Question, error)
	getFn        func(ctx context.Context, questionID string) (*model.QuestionWithAuthor, []model.AnswerWithAuthor, error)
	listRecentFn func(ctx context.Context) ([]model.QuestionWithAuthor, error)
	answerFn     func(ctx context.Context, authorID, questionID, body string) (*model.Answer, error)
	voteFn       func(ctx context.Context, userID, answerID string, value model.VoteValue) (string, error)
}

func (m *mockForumService) Ask(ctx context.Context, authorID, title, body string) (*model.Question, error) {
	if m.askFn != nil {
		return m.askFn(ctx, authorID, title, body)
	}
	return &model.Question{ID: "q1", AuthorID: authorID, Title: title, Body: body}, nil
}

func (m *mockForumService) Get(ctx context.Context, questionID string) (*model.QuestionWithAuthor, []model.AnswerWithAuthor, error) {
	if m.getFn != nil {
		return m.getFn(ctx, questionID)
	}
	return nil, nil, model.NewNotFoundError()
}

func (m *mockForumService) ListRecent(ctx context.Context) ([]model.QuestionWithAuthor, error) {
	if m.listRecentFn != nil {
		return m.listRecentFn(ctx)
	}
	return nil, nil
}

func (m *mockForumService) Answer(ctx context.Context, authorID, questionID, body string) (*model.Answer, error) {
	if m.answerFn != nil {
		return m.answerFn(ctx, authorID, questionID, body)
	}
	return &model.Answer{ID: "a1", QuestionID: questionID, AuthorID: authorID}, nil
}

func (m *mockForumService) Vote(ctx context.Context, userID, answerID string, value model.VoteValue) (string, error) {
	if m.voteFn != nil {
		return m.voteFn(ctx, userID, answerID, value)
	}
	return "q1", nil
}

var (
	_ AuthServiceInterface  = (*mockAuthService)(nil)
	_ ForumServiceInterface = (*mockForumService)(nil)
	_ FlashWriter           = (*mockAuthService)(nil)
)

func newTestEngine(t *testing.T) *render.Engine {
	t.Helper()
	engine, err := render.NewEngine()
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	return engine
}
