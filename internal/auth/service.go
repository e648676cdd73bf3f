package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/askboard/internal/model"
	"github.com/hitoshi/askboard/internal/repository"
)

// Metrics は認証イベントの計測インターフェース。
// metricsパッケージのCollectorが実装する。
type Metrics interface {
	RecordLoginSuccess(method string)
	RecordLoginFailure(method string)
	RecordSessionCreated()
}

// nopMetrics は計測を行わないMetrics実装。テストおよび未設定時に使用する。
type nopMetrics struct{}

func (nopMetrics) RecordLoginSuccess(method string) {}
func (nopMetrics) RecordLoginFailure(method string) {}
func (nopMetrics) RecordSessionCreated()            {}

// Service は認証ゲートウェイ。ローカル認証とフェデレーション認証の
// 2つのエントリポイントを統合し、セッションへの紐付けを行う。
type Service struct {
	provider Provider
	verifier *Verifier
	resolver *Resolver
	sessions *SessionManager
	users    repository.UserRepository
	metrics  Metrics
}

// NewService はServiceを生成する。metricsがnilの場合は計測を行わない。
func NewService(
	provider Provider,
	verifier *Verifier,
	resolver *Resolver,
	sessions *SessionManager,
	users repository.UserRepository,
	metrics Metrics,
) *Service {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &Service{
		provider: provider,
		verifier: verifier,
		resolver: resolver,
		sessions: sessions,
		users:    users,
		metrics:  metrics,
	}
}

// LoginURL はフェデレーション認証の開始URLを生成する。
func (s *Service) LoginURL(state string) string {
	return s.provider.LoginURL(state)
}

// LoginLocal はユーザー名とパスワードでログインし、セッションを紐付ける。
// 戻り値はクッキーに設定する署名付きトークン。
func (s *Service) LoginLocal(ctx context.Context, currentToken, username, password string) (string, error) {
	user, err := s.verifier.Verify(ctx, username, password)
	if err != nil {
		s.metrics.RecordLoginFailure("local")
		return "", err
	}

	token, err := s.bindOrCreate(ctx, currentToken, user.ID)
	if err != nil {
		return "", err
	}

	s.metrics.RecordLoginSuccess("local")
	slog.Info("user logged in",
		slog.String("user_id", user.ID),
		slog.String("method", "local"),
	)
	return token, nil
}

// RegisterLocal はローカル資格情報で新規ユーザーを登録し、セッションを紐付ける。
// ユーザー名・メールアドレスの衝突はConflictのAppErrorとして返す。
func (s *Service) RegisterLocal(ctx context.Context, currentToken, username, email, name, password string) (string, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return "", err
	}

	now := time.Now()
	user := &model.User{
		ID:           uuid.New().String(),
		Username:     username,
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Create(ctx, user, nil); err != nil {
		return "", err
	}

	token, err := s.bindOrCreate(ctx, currentToken, user.ID)
	if err != nil {
		return "", err
	}

	s.metrics.RecordLoginSuccess("local")
	slog.Info("new user registered",
		slog.String("user_id", user.ID),
		slog.String("username", username),
	)
	return token, nil
}

// HandleCallback はフェデレーションコールバックを処理し、セッションを紐付ける。
// IdPとの交換失敗はProviderExchangeFailureに変換する（詳細はログのみ）。
func (s *Service) HandleCallback(ctx context.Context, currentToken, code string) (string, error) {
	claim, err := s.provider.Exchange(ctx, code)
	if err != nil {
		s.metrics.RecordLoginFailure("federated")
		slog.Error("oauth exchange failed", slog.String("error", err.Error()))
		return "", model.NewProviderExchangeError()
	}

	user, err := s.resolver.Resolve(ctx, claim)
	if err != nil {
		s.metrics.RecordLoginFailure("federated")
		return "", err
	}

	token, err := s.bindOrCreate(ctx, currentToken, user.ID)
	if err != nil {
		return "", err
	}

	s.metrics.RecordLoginSuccess("federated")
	slog.Info("user logged in",
		slog.String("user_id", user.ID),
		slog.String("method", "federated"),
	)
	return token, nil
}

// Logout はセッションを破棄する。存在しないセッションもエラーとしない。
func (s *Service) Logout(ctx context.Context, token string) error {
	if err := s.sessions.Destroy(ctx, token); err != nil {
		return fmt.Errorf("failed to logout: %w", err)
	}
	return nil
}

// CurrentUser はセッショントークンから現在のユーザーを解決する。
// セッション未発行・期限切れ・紐付けユーザー不在はすべて匿名（nil, nil）として扱う。
func (s *Service) CurrentUser(ctx context.Context, token string) (*model.User, error) {
	session, err := s.sessions.Restore(ctx, token)
	if err != nil {
		return nil, err
	}
	if session == nil || session.Anonymous() {
		return nil, nil
	}

	user, err := s.users.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session user: %w", err)
	}
	// 紐付け先ユーザーが消えたセッションは匿名として扱う
	return user, nil
}

// EnsureSession は有効なセッションがあればそのトークンを、なければ
// 匿名セッションを新規作成してそのトークンを返す。
// フラッシュメッセージ等のサーバー側状態が必要になった時点で呼ばれる。
func (s *Service) EnsureSession(ctx context.Context, token string) (string, error) {
	session, err := s.sessions.Restore(ctx, token)
	if err != nil {
		return "", err
	}
	if session != nil {
		return token, nil
	}

	newToken, _, err := s.sessions.Create(ctx, "")
	if err != nil {
		return "", err
	}
	s.metrics.RecordSessionCreated()
	return newToken, nil
}

// AddFlash はセッションにフラッシュメッセージを追記する。
func (s *Service) AddFlash(ctx context.Context, token, kind, message string) error {
	return s.sessions.AppendFlash(ctx, token, kind, message)
}

// ConsumeFlash は蓄積されたフラッシュメッセージを取得し、同時にクリアする。
func (s *Service) ConsumeFlash(ctx context.Context, token string) (*model.Flash, error) {
	return s.sessions.ConsumeFlash(ctx, token)
}

// bindOrCreate は既存セッションがあればユーザーを紐付け、なければ
// 紐付け済みセッションを新規作成する。
func (s *Service) bindOrCreate(ctx context.Context, currentToken, userID string) (string, error) {
	if currentToken != "" {
		session, err := s.sessions.Restore(ctx, currentToken)
		if err != nil {
			return "", err
		}
		if session != nil {
			if err := s.sessions.Bind(ctx, currentToken, userID); err != nil {
				return "", err
			}
			return currentToken, nil
		}
	}

	token, _, err := s.sessions.Create(ctx, userID)
	if err != nil {
		return "", err
	}
	s.metrics.RecordSessionCreated()
	return token, nil
}
