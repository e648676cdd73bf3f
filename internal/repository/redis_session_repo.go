package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/askboard/internal/model"
)

// RedisSessionRepo はRedisを使用したセッションリポジトリ。
// セッションは永続DBと分離した高速KVストアに置ける設計であり、
// PostgresSessionRepoと同一のSessionRepositoryインターフェースを満たす。
// 期限管理はRedisのTTLに委ねる（絶対期限 = キーのTTL）。
//
// セッションは1キー1ハッシュで保持し、BindとTouchは対象フィールドのみを
// HSETで書き換える。全体を読み直して書き戻す方式では、並行するBindと
// Touchが互いの更新を失わせるため（PostgresSessionRepoのUPDATE文と同じ
// 粒度に揃える）。
type RedisSessionRepo struct {
	client *redis.Client
}

// NewRedisSessionRepo はRedisSessionRepoを生成する。
func NewRedisSessionRepo(client *redis.Client) *RedisSessionRepo {
	return &RedisSessionRepo{client: client}
}

func sessionKey(token string) string {
	return "session:" + token
}

func flashKey(token string) string {
	return "session:" + token + ":flash"
}

// ハッシュのフィールド名。
const (
	fieldUserID        = "user_id"
	fieldCreatedAt     = "created_at"
	fieldExpiresAt     = "expires_at"
	fieldLastTouchedAt = "last_touched_at"
)

// sessionFields はセッションをRedisハッシュのフィールド表現に変換する。
// 時刻はRFC3339Nano文字列として保存する。
func sessionFields(session *model.Session) map[string]string {
	return map[string]string{
		fieldUserID:        session.UserID,
		fieldCreatedAt:     session.CreatedAt.Format(time.RFC3339Nano),
		fieldExpiresAt:     session.ExpiresAt.Format(time.RFC3339Nano),
		fieldLastTouchedAt: session.LastTouchedAt.Format(time.RFC3339Nano),
	}
}

// sessionFromFields はRedisハッシュのフィールド表現からセッションを復元する。
func sessionFromFields(token string, fields map[string]string) (*model.Session, error) {
	createdAt, err := time.Parse(time.RFC3339Nano, fields[fieldCreatedAt])
	if err != nil {
		return nil, fmt.Errorf("failed to parse session created_at: %w", err)
	}
	expiresAt, err := time.Parse(time.RFC3339Nano, fields[fieldExpiresAt])
	if err != nil {
		return nil, fmt.Errorf("failed to parse session expires_at: %w", err)
	}
	lastTouchedAt, err := time.Parse(time.RFC3339Nano, fields[fieldLastTouchedAt])
	if err != nil {
		return nil, fmt.Errorf("failed to parse session last_touched_at: %w", err)
	}

	return &model.Session{
		Token:         token,
		UserID:        fields[fieldUserID],
		CreatedAt:     createdAt,
		ExpiresAt:     expiresAt,
		LastTouchedAt: lastTouchedAt,
	}, nil
}

// flashEntry はRedisリストに積むフラッシュメッセージ1件分の表現。
type flashEntry struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Create はセッションを作成する。キーのTTLを絶対期限に合わせて設定する。
func (r *RedisSessionRepo) Create(ctx context.Context, session *model.Session) error {
	if !session.ExpiresAt.After(time.Now()) {
		return fmt.Errorf("session already expired at creation")
	}

	key := sessionKey(session.Token)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, sessionFields(session))
		pipe.ExpireAt(ctx, key, session.ExpiresAt)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// FindByToken は指定トークンのセッションを取得する。
// キーが存在しない（未発行または期限切れ）場合はnilを返す。
func (r *RedisSessionRepo) FindByToken(ctx context.Context, token string) (*model.Session, error) {
	fields, err := r.client.HGetAll(ctx, sessionKey(token)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	session, err := sessionFromFields(token, fields)
	if err != nil {
		return nil, err
	}

	// TTLの揺らぎに備えて絶対期限も検査する
	if !session.ExpiresAt.After(time.Now()) {
		return nil, nil
	}
	return session, nil
}

// Bind は匿名セッションにユーザーIDを紐付ける。TTLは維持する。
// user_idフィールドのみを書き換えるため、並行するTouchと衝突しない。
func (r *RedisSessionRepo) Bind(ctx context.Context, token, userID string) error {
	expiresAt, ok, err := r.expiresAt(ctx, token)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	key := sessionKey(token)
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, fieldUserID, userID)
		// HSETがキーを再作成した場合でも絶対期限を必ず復元する
		pipe.ExpireAt(ctx, key, expiresAt)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to bind session: %w", err)
	}
	return nil
}

// Touch は最終アクセス透かしがthresholdより古い場合のみ更新する。
// last_touched_atフィールドのみを書き換えるため、並行するBindと衝突しない。
// 同一トークンへの並行Touchはlast-writer-winsとなる（透かしにのみ影響するため許容）。
func (r *RedisSessionRepo) Touch(ctx context.Context, token string, threshold time.Duration) error {
	key := sessionKey(token)
	vals, err := r.client.HMGet(ctx, key, fieldExpiresAt, fieldLastTouchedAt).Result()
	if err != nil {
		return fmt.Errorf("failed to read session for touch: %w", err)
	}
	expiresRaw, ok1 := vals[0].(string)
	touchedRaw, ok2 := vals[1].(string)
	if !ok1 || !ok2 {
		return nil
	}

	expiresAt, err := time.Parse(time.RFC3339Nano, expiresRaw)
	if err != nil {
		return fmt.Errorf("failed to parse session expires_at: %w", err)
	}
	lastTouchedAt, err := time.Parse(time.RFC3339Nano, touchedRaw)
	if err != nil {
		return fmt.Errorf("failed to parse session last_touched_at: %w", err)
	}
	if time.Since(lastTouchedAt) < threshold {
		return nil
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, fieldLastTouchedAt, time.Now().Format(time.RFC3339Nano))
		pipe.ExpireAt(ctx, key, expiresAt)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}
	return nil
}

// expiresAt はセッションの絶対期限を取得する。キーが存在しない場合はfalseを返す。
func (r *RedisSessionRepo) expiresAt(ctx context.Context, token string) (time.Time, bool, error) {
	raw, err := r.client.HGet(ctx, sessionKey(token), fieldExpiresAt).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to read session expiry: %w", err)
	}

	expiresAt, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to parse session expires_at: %w", err)
	}
	return expiresAt, true, nil
}

// Delete はセッションとフラッシュキューを削除する。存在しないトークンはエラーとしない。
func (r *RedisSessionRepo) Delete(ctx context.Context, token string) error {
	if err := r.client.Del(ctx, sessionKey(token), flashKey(token)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteExpired は何もしない。期限切れキーはRedisのTTLで自動回収される。
func (r *RedisSessionRepo) DeleteExpired(ctx context.Context) (int64, error) {
	return 0, nil
}

// AppendFlash はフラッシュメッセージをリストに追記する。
// リストのTTLはセッション本体と同じ寿命に揃える。
func (r *RedisSessionRepo) AppendFlash(ctx context.Context, token, kind, message string) error {
	if kind != "success" && kind != "error" {
		return fmt.Errorf("unknown flash kind: %s", kind)
	}

	expiresAt, ok, err := r.expiresAt(ctx, token)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	entry, err := json.Marshal(flashEntry{Kind: kind, Message: message})
	if err != nil {
		return fmt.Errorf("failed to encode flash entry: %w", err)
	}

	key := flashKey(token)
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, entry)
		pipe.ExpireAt(ctx, key, expiresAt)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to append flash: %w", err)
	}
	return nil
}

// ConsumeFlash は蓄積されたフラッシュメッセージを取得し、同時にクリアする。
// LRANGEとDELをトランザクションパイプラインで実行する（exactly-once表示）。
func (r *RedisSessionRepo) ConsumeFlash(ctx context.Context, token string) (*model.Flash, error) {
	key := flashKey(token)

	var entries *redis.StringSliceCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		entries = pipe.LRange(ctx, key, 0, -1)
		pipe.Del(ctx, key)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to consume flash: %w", err)
	}

	flash := &model.Flash{}
	for _, raw := range entries.Val() {
		entry := flashEntry{}
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			return nil, fmt.Errorf("failed to decode flash entry: %w", err)
		}
		switch entry.Kind {
		case "success":
			flash.Success = append(flash.Success, entry.Message)
		case "error":
			flash.Error = append(flash.Error, entry.Message)
		}
	}
	return flash, nil
}

// compile-time interface check
var _ SessionRepository = (*RedisSessionRepo)(nil)
