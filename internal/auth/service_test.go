package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/askboard/internal/model"
)

// recordingMetrics はメトリクス呼び出しを記録するテスト用実装。
type recordingMetrics struct {
	mu       sync.Mutex
	success  []string
	failure  []string
	sessions int
}

func (m *recordingMetrics) RecordLoginSuccess(method string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.success = append(m.success, method)
}

func (m *recordingMetrics) RecordLoginFailure(method string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failure = append(m.failure, method)
}

func (m *recordingMetrics) RecordSessionCreated() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions++
}

func newTestService(t *testing.T, users *mockUserRepo, sessions *mockSessionRepo, provider *mockProvider) (*Service, *recordingMetrics) {
	t.Helper()
	if users == nil {
		users = &mockUserRepo{}
	}
	if sessions == nil {
		sessions = &mockSessionRepo{}
	}
	if provider == nil {
		provider = &mockProvider{}
	}
	metrics := &recordingMetrics{}
	manager := NewSessionManager(sessions, SessionConfig{
		Secret:     "test-secret",
		MaxAge:     time.Hour,
		TouchAfter: time.Minute,
	})
	svc := NewService(provider, NewVerifier(users), NewResolver(users), manager, users, metrics)
	return svc, metrics
}

func TestLoginURL_DelegatesToProvider(t *testing.T) {
	provider := &mockProvider{
		loginURLFn: func(state string) string {
			return "https://accounts.google.com/o/oauth2/auth?state=" + state
		},
	}
	svc, _ := newTestService(t, nil, nil, provider)

	url := svc.LoginURL("test-state")
	if url != "https://accounts.google.com/o/oauth2/auth?state=test-state" {
		t.Errorf("LoginURL() = %q", url)
	}
}

func TestLoginLocal_Success_CreatesBoundSession(t *testing.T) {
	ctx := context.Background()

	hash, err := HashPassword("pw123")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}

	users := &mockUserRepo{
		findByUsernameFn: func(ctx context.Context, username string) (*model.User, error) {
			return &model.User{ID: "user-1", Username: username, PasswordHash: hash}, nil
		},
	}

	var created *model.Session
	sessions := &mockSessionRepo{
		createFn: func(ctx context.Context, session *model.Session) error {
			created = session
			return nil
		},
	}
	svc, metrics := newTestService(t, users, sessions, nil)

	token, err := svc.LoginLocal(ctx, "", "alice", "pw123")
	if err != nil {
		t.Fatalf("LoginLocal() error = %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty session token")
	}
	if created == nil || created.UserID != "user-1" {
		t.Errorf("created session = %+v", created)
	}
	if len(metrics.success) != 1 || metrics.success[0] != "local" {
		t.Errorf("success metrics = %v", metrics.success)
	}
}

func TestLoginLocal_ExistingSession_BindsInsteadOfCreating(t *testing.T) {
	ctx := context.Background()

	hash, err := HashPassword("pw123")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}

	users := &mockUserRepo{
		findByUsernameFn: func(ctx context.Context, username string) (*model.User, error) {
			return &model.User{ID: "user-1", Username: username, PasswordHash: hash}, nil
		},
	}

	var boundUserID string
	createCalled := false
	sessions := &mockSessionRepo{
		findByTokenFn: func(ctx context.Context, token string) (*model.Session, error) {
			return &model.Session{Token: token}, nil
		},
		bindFn: func(ctx context.Context, token, userID string) error {
			boundUserID = userID
			return nil
		},
		createFn: func(ctx context.Context, session *model.Session) error {
			createCalled = true
			return nil
		},
	}
	svc, _ := newTestService(t, users, sessions, nil)

	// 既存の匿名セッションのトークンを渡す
	manager := NewSessionManager(sessions, SessionConfig{Secret: "test-secret", MaxAge: time.Hour, TouchAfter: time.Minute})
	existing := manager.sign("anon-token")

	token, err := svc.LoginLocal(ctx, existing, "alice", "pw123")
	if err != nil {
		t.Fatalf("LoginLocal() error = %v", err)
	}
	if token != existing {
		t.Errorf("token = %q, want existing token %q", token, existing)
	}
	if boundUserID != "user-1" {
		t.Errorf("bound user ID = %q", boundUserID)
	}
	if createCalled {
		t.Error("new session should not be created when one exists")
	}
}

func TestLoginLocal_InvalidCredentials_RecordsFailure(t *testing.T) {
	ctx := context.Background()

	users := &mockUserRepo{
		findByUsernameFn: func(ctx context.Context, username string) (*model.User, error) {
			return nil, nil
		},
	}
	svc, metrics := newTestService(t, users, nil, nil)

	_, err := svc.LoginLocal(ctx, "", "nobody", "pw")
	if !model.IsCode(err, model.ErrCodeInvalidCredentials) {
		t.Errorf("expected invalid credentials error, got %v", err)
	}
	if len(metrics.failure) != 1 || metrics.failure[0] != "local" {
		t.Errorf("failure metrics = %v", metrics.failure)
	}
}

func TestRegisterLocal_CreatesUserWithHashedPassword(t *testing.T) {
	ctx := context.Background()

	var createdUser *model.User
	users := &mockUserRepo{
		createFn: func(ctx context.Context, user *model.User, identity *model.Identity) error {
			createdUser = user
			if identity != nil {
				t.Error("local registration should not create an identity")
			}
			return nil
		},
	}
	svc, _ := newTestService(t, users, nil, nil)

	token, err := svc.RegisterLocal(ctx, "", "bob", "bob@example.com", "Bob", "secret-pw")
	if err != nil {
		t.Fatalf("RegisterLocal() error = %v", err)
	}
	if token == "" {
		t.Fatal("expected session token")
	}

	if createdUser == nil {
		t.Fatal("expected user to be created")
	}
	if createdUser.PasswordHash == "" || createdUser.PasswordHash == "secret-pw" {
		t.Error("password should be stored as a hash")
	}
	if createdUser.Username != "bob" || createdUser.Email != "bob@example.com" {
		t.Errorf("created user = %+v", createdUser)
	}
}

func TestRegisterLocal_DuplicateUsername_ReturnsConflict(t *testing.T) {
	ctx := context.Background()

	users := &mockUserRepo{
		createFn: func(ctx context.Context, user *model.User, identity *model.Identity) error {
			return model.NewConflictError("このユーザー名は既に使用されています。")
		},
	}
	svc, _ := newTestService(t, users, nil, nil)

	_, err := svc.RegisterLocal(ctx, "", "taken", "t@example.com", "T", "pw")
	if !model.IsConflict(err) {
		t.Errorf("expected conflict error, got %v", err)
	}
}

func TestHandleCallback_Success_ResolvesAndBinds(t *testing.T) {
	ctx := context.Background()

	provider := &mockProvider{
		exchangeFn: func(ctx context.Context, code string) (*ProfileClaim, error) {
			return &ProfileClaim{
				Provider:  "google",
				SubjectID: "google-sub-1",
				Name:      "Carol",
				Emails:    []string{"carol@example.com"},
			}, nil
		},
	}
	users := &mockUserRepo{
		findByFederatedIDFn: func(ctx context.Context, provider, subjectID string) (*model.User, error) {
			return &model.User{ID: "user-9", Email: "carol@example.com"}, nil
		},
	}

	var created *model.Session
	sessions := &mockSessionRepo{
		createFn: func(ctx context.Context, session *model.Session) error {
			created = session
			return nil
		},
	}
	svc, metrics := newTestService(t, users, sessions, provider)

	token, err := svc.HandleCallback(ctx, "", "auth-code")
	if err != nil {
		t.Fatalf("HandleCallback() error = %v", err)
	}
	if token == "" {
		t.Fatal("expected session token")
	}
	if created == nil || created.UserID != "user-9" {
		t.Errorf("created session = %+v", created)
	}
	if len(metrics.success) != 1 || metrics.success[0] != "federated" {
		t.Errorf("success metrics = %v", metrics.success)
	}
}

func TestHandleCallback_ExchangeError_ReturnsProviderExchangeFailure(t *testing.T) {
	ctx := context.Background()

	provider := &mockProvider{
		exchangeFn: func(ctx context.Context, code string) (*ProfileClaim, error) {
			return nil, errors.New("token endpoint returned 500")
		},
	}
	svc, metrics := newTestService(t, nil, nil, provider)

	_, err := svc.HandleCallback(ctx, "", "bad-code")
	if !model.IsCode(err, model.ErrCodeProviderExchangeFailure) {
		t.Errorf("expected provider exchange failure, got %v", err)
	}
	// 内部詳細がユーザー向けメッセージに漏れないこと
	if appErr := model.AsAppError(err); appErr.Message == "" || appErr.Message == "token endpoint returned 500" {
		t.Errorf("message = %q", appErr.Message)
	}
	if len(metrics.failure) != 1 || metrics.failure[0] != "federated" {
		t.Errorf("failure metrics = %v", metrics.failure)
	}
}

func TestCurrentUser_AnonymousSession_ReturnsNil(t *testing.T) {
	ctx := context.Background()

	sessions := &mockSessionRepo{
		findByTokenFn: func(ctx context.Context, token string) (*model.Session, error) {
			return &model.Session{Token: token}, nil
		},
	}
	svc, _ := newTestService(t, nil, sessions, nil)

	manager := NewSessionManager(sessions, SessionConfig{Secret: "test-secret", MaxAge: time.Hour, TouchAfter: time.Minute})
	user, err := svc.CurrentUser(ctx, manager.sign("anon"))
	if err != nil {
		t.Fatalf("CurrentUser() error = %v", err)
	}
	if user != nil {
		t.Errorf("user = %+v, want nil", user)
	}
}

func TestCurrentUser_MissingSession_ReturnsNil(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, nil, nil, nil)

	user, err := svc.CurrentUser(ctx, "invalid-token")
	if err != nil {
		t.Fatalf("CurrentUser() error = %v", err)
	}
	if user != nil {
		t.Errorf("user = %+v, want nil", user)
	}
}

func TestCurrentUser_DeletedUser_ReturnsNil(t *testing.T) {
	ctx := context.Background()

	sessions := &mockSessionRepo{
		findByTokenFn: func(ctx context.Context, token string) (*model.Session, error) {
			return &model.Session{Token: token, UserID: "ghost"}, nil
		},
	}
	users := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			return nil, nil
		},
	}
	svc, _ := newTestService(t, users, sessions, nil)

	manager := NewSessionManager(sessions, SessionConfig{Secret: "test-secret", MaxAge: time.Hour, TouchAfter: time.Minute})
	user, err := svc.CurrentUser(ctx, manager.sign("tok"))
	if err != nil {
		t.Fatalf("CurrentUser() error = %v", err)
	}
	if user != nil {
		t.Errorf("user = %+v, want nil", user)
	}
}

func TestEnsureSession_ValidToken_ReturnsSameToken(t *testing.T) {
	ctx := context.Background()

	sessions := &mockSessionRepo{
		findByTokenFn: func(ctx context.Context, token string) (*model.Session, error) {
			return &model.Session{Token: token}, nil
		},
	}
	svc, _ := newTestService(t, nil, sessions, nil)

	manager := NewSessionManager(sessions, SessionConfig{Secret: "test-secret", MaxAge: time.Hour, TouchAfter: time.Minute})
	existing := manager.sign("tok")

	token, err := svc.EnsureSession(ctx, existing)
	if err != nil {
		t.Fatalf("EnsureSession() error = %v", err)
	}
	if token != existing {
		t.Errorf("token = %q, want %q", token, existing)
	}
}

func TestEnsureSession_NoSession_CreatesAnonymous(t *testing.T) {
	ctx := context.Background()

	var created *model.Session
	sessions := &mockSessionRepo{
		createFn: func(ctx context.Context, session *model.Session) error {
			created = session
			return nil
		},
	}
	svc, metrics := newTestService(t, nil, sessions, nil)

	token, err := svc.EnsureSession(ctx, "")
	if err != nil {
		t.Fatalf("EnsureSession() error = %v", err)
	}
	if token == "" {
		t.Fatal("expected new token")
	}
	if created == nil || !created.Anonymous() {
		t.Errorf("created = %+v, want anonymous session", created)
	}
	if metrics.sessions != 1 {
		t.Errorf("sessions created = %d, want 1", metrics.sessions)
	}
}

func TestLogout_DestroysSession(t *testing.T) {
	ctx := context.Background()

	var deleted string
	sessions := &mockSessionRepo{
		deleteFn: func(ctx context.Context, token string) error {
			deleted = token
			return nil
		},
	}
	svc, _ := newTestService(t, nil, sessions, nil)

	manager := NewSessionManager(sessions, SessionConfig{Secret: "test-secret", MaxAge: time.Hour, TouchAfter: time.Minute})
	if err := svc.Logout(ctx, manager.sign("tok")); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if deleted != "tok" {
		t.Errorf("deleted = %q, want tok", deleted)
	}
}

func TestLogout_InvalidToken_IsNoOp(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, nil, nil, nil)

	if err := svc.Logout(ctx, "garbage"); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
}
