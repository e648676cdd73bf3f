package auth

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/hitoshi/askboard/internal/model"
	"github.com/hitoshi/askboard/internal/repository"
)

// SessionConfig はセッション管理の設定。
type SessionConfig struct {
	// Secret はクッキー値の署名鍵。偽造トークンをストア参照前に弾く。
	Secret string
	// MaxAge は絶対有効期間。作成時に固定され、以後延長されない。
	MaxAge time.Duration
	// TouchAfter はアイドル透かし更新の閾値。これより新しい透かしは再書き込みしない。
	TouchAfter time.Duration
}

// SessionManager は不透明セッショントークンの発行・復元・破棄を提供する。
// ストレージバックエンド（PostgreSQL / Redis）はSessionRepositoryで抽象化される。
type SessionManager struct {
	repo   repository.SessionRepository
	config SessionConfig
}

// NewSessionManager はSessionManagerを生成する。
func NewSessionManager(repo repository.SessionRepository, config SessionConfig) *SessionManager {
	return &SessionManager{repo: repo, config: config}
}

// Create は新しいセッションを発行する。userIDが空の場合は匿名セッションとなる。
// 戻り値のsignedTokenをそのままクッキー値として使用する。
func (m *SessionManager) Create(ctx context.Context, userID string) (string, *model.Session, error) {
	raw, err := generateToken()
	if err != nil {
		return "", nil, fmt.Errorf("failed to generate session token: %w", err)
	}

	now := time.Now()
	session := &model.Session{
		Token:         raw,
		UserID:        userID,
		CreatedAt:     now,
		ExpiresAt:     now.Add(m.config.MaxAge),
		LastTouchedAt: now,
	}

	if err := m.repo.Create(ctx, session); err != nil {
		return "", nil, fmt.Errorf("failed to save session: %w", err)
	}

	return m.sign(raw), session, nil
}

// Restore は署名付きトークンからセッションを復元する。
// 署名不正・未発行・期限切れのいずれもエラーではなくnilを返す（ソフトフェイル）。
// 復元に成功した場合、アイドル透かしが閾値より古ければ更新する。
func (m *SessionManager) Restore(ctx context.Context, signedToken string) (*model.Session, error) {
	raw, ok := m.verify(signedToken)
	if !ok {
		return nil, nil
	}

	session, err := m.repo.FindByToken(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("failed to restore session: %w", err)
	}
	if session == nil {
		return nil, nil
	}

	if err := m.repo.Touch(ctx, raw, m.config.TouchAfter); err != nil {
		return nil, fmt.Errorf("failed to touch session: %w", err)
	}

	return session, nil
}

// Bind は既存の匿名セッションにユーザーIDを紐付ける（Unbound -> Bound）。
func (m *SessionManager) Bind(ctx context.Context, signedToken, userID string) error {
	raw, ok := m.verify(signedToken)
	if !ok {
		return fmt.Errorf("invalid session token")
	}
	if err := m.repo.Bind(ctx, raw, userID); err != nil {
		return fmt.Errorf("failed to bind session: %w", err)
	}
	return nil
}

// Destroy はセッションを破棄する。不正・未発行のトークンもエラーとしない（冪等）。
func (m *SessionManager) Destroy(ctx context.Context, signedToken string) error {
	raw, ok := m.verify(signedToken)
	if !ok {
		return nil
	}
	if err := m.repo.Delete(ctx, raw); err != nil {
		return fmt.Errorf("failed to destroy session: %w", err)
	}
	return nil
}

// AppendFlash はセッションにフラッシュメッセージを追記する。
func (m *SessionManager) AppendFlash(ctx context.Context, signedToken, kind, message string) error {
	raw, ok := m.verify(signedToken)
	if !ok {
		return nil
	}
	return m.repo.AppendFlash(ctx, raw, kind, message)
}

// ConsumeFlash は蓄積されたフラッシュメッセージを取得し、同時にクリアする。
func (m *SessionManager) ConsumeFlash(ctx context.Context, signedToken string) (*model.Flash, error) {
	raw, ok := m.verify(signedToken)
	if !ok {
		return &model.Flash{}, nil
	}
	return m.repo.ConsumeFlash(ctx, raw)
}

// sign はトークンにHMAC-SHA256署名を付与する。
func (m *SessionManager) sign(raw string) string {
	mac := hmac.New(sha256.New, []byte(m.config.Secret))
	mac.Write([]byte(raw))
	return raw + "." + hex.EncodeToString(mac.Sum(nil))
}

// verify は署名付きトークンを検証し、生トークンを返す。
// 形式不正・署名不一致の場合はfalseを返す。
func (m *SessionManager) verify(signedToken string) (string, bool) {
	raw, sig, found := strings.Cut(signedToken, ".")
	if !found || raw == "" {
		return "", false
	}

	mac := hmac.New(sha256.New, []byte(m.config.Secret))
	mac.Write([]byte(raw))
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(sig), []byte(expected)) {
		return "", false
	}
	return raw, true
}

// generateToken は暗号的に安全なセッショントークンを生成する。
func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
