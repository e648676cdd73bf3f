package auth

import (
	"context"
	"time"

	"github.com/hitoshi/askboard/internal/model"
	"github.com/hitoshi/askboard/internal/repository"
)

// --- モック定義（auth配下のテストで共用） ---

type mockUserRepo struct {
	findByIDFn          func(ctx context.Context, id string) (*model.User, error)
	findByUsernameFn    func(ctx context.Context, username string) (*model.User, error)
	findByFederatedIDFn func(ctx context.Context, provider, subjectID string) (*model.User, error)
	createFn            func(ctx context.Context, user *model.User, identity *model.Identity) error
	incrementCounterFn  func(ctx context.Context, userID string, counter model.Counter, delta int) error
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockUserRepo) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	if m.findByUsernameFn != nil {
		return m.findByUsernameFn(ctx, username)
	}
	return nil, nil
}

func (m *mockUserRepo) FindByFederatedID(ctx context.Context, provider, subjectID string) (*model.User, error) {
	if m.findByFederatedIDFn != nil {
		return m.findByFederatedIDFn(ctx, provider, subjectID)
	}
	return nil, nil
}

func (m *mockUserRepo) Create(ctx context.Context, user *model.User, identity *model.Identity) error {
	if m.createFn != nil {
		return m.createFn(ctx, user, identity)
	}
	return nil
}

func (m *mockUserRepo) IncrementCounter(ctx context.Context, userID string, counter model.Counter, delta int) error {
	if m.incrementCounterFn != nil {
		return m.incrementCounterFn(ctx, userID, counter, delta)
	}
	return nil
}

type mockSessionRepo struct {
	createFn        func(ctx context.Context, session *model.Session) error
	findByTokenFn   func(ctx context.Context, token string) (*model.Session, error)
	bindFn          func(ctx context.Context, token, userID string) error
	touchFn         func(ctx context.Context, token string, threshold time.Duration) error
	deleteFn        func(ctx context.Context, token string) error
	deleteExpiredFn func(ctx context.Context) (int64, error)
	appendFlashFn   func(ctx context.Context, token, kind, message string) error
	consumeFlashFn  func(ctx context.Context, token string) (*model.Flash, error)
}

func (m *mockSessionRepo) Create(ctx context.Context, session *model.Session) error {
	if m.createFn != nil {
		return m.createFn(ctx, session)
	}
	return nil
}

func (m *mockSessionRepo) FindByToken(ctx context.Context, token string) (*model.Session, error) {
	if m.findByTokenFn != nil {
		return m.findByTokenFn(ctx, token)
	}
	return nil, nil
}

func (m *mockSessionRepo) Bind(ctx context.Context, token, userID string) error {
	if m.bindFn != nil {
		return m.bindFn(ctx, token, userID)
	}
	return nil
}

func (m *mockSessionRepo) Touch(ctx context.Context, token string, threshold time.Duration) error {
	if m.touchFn != nil {
		return m.touchFn(ctx, token, threshold)
	}
	return nil
}

func (m *mockSessionRepo) Delete(ctx context.Context, token string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, token)
	}
	return nil
}

func (m *mockSessionRepo) DeleteExpired(ctx context.Context) (int64, error) {
	if m.deleteExpiredFn != nil {
		return m.deleteExpiredFn(ctx)
	}
	return 0, nil
}

func (m *mockSessionRepo) AppendFlash(ctx context.Context, token, kind, message string) error {
	if m.appendFlashFn != nil {
		return m.appendFlashFn(ctx, token, kind, message)
	}
	return nil
}

func (m *mockSessionRepo) ConsumeFlash(ctx context.Context, token string) (*model.Flash, error) {
	if m.consumeFlashFn != nil {
		return m.consumeFlashFn(ctx, token)
	}
	return &model.Flash{}, nil
}

type mockProvider struct {
	loginURLFn func(state string) string
	exchangeFn func(ctx context.Context, code string) (*ProfileClaim, error)
}

func (m *mockProvider) LoginURL(state string) string {
	if m.loginURLFn != nil {
		return m.loginURLFn(state)
	}
	return ""
}

func (m *mockProvider) Exchange(ctx context.Context, code string) (*ProfileClaim, error) {
	if m.exchangeFn != nil {
		return m.exchangeFn(ctx, code)
	}
	return nil, nil
}

// --- compile-time interface checks ---
var _ repository.UserRepository = (*mockUserRepo)(nil)
var _ repository.SessionRepository = (*mockSessionRepo)(nil)
var _ Provider = (*mockProvider)(nil)
