package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hitoshi/askboard/internal/model"
)

// PostgresSessionRepo はPostgreSQLを使用したセッションリポジトリ。
type PostgresSessionRepo struct {
	db *sql.DB
}

// NewPostgresSessionRepo はPostgresSessionRepoを生成する。
func NewPostgresSessionRepo(db *sql.DB) *PostgresSessionRepo {
	return &PostgresSessionRepo{db: db}
}

// Create はセッションを作成する。ExpiresAtは作成時に固定される。
func (r *PostgresSessionRepo) Create(ctx context.Context, session *model.Session) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (token, user_id, data, created_at, expires_at, last_touched_at)
		 VALUES ($1, $2, '{}'::jsonb, $3, $4, $5)`,
		session.Token, nullString(session.UserID),
		session.CreatedAt, session.ExpiresAt, session.LastTouchedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// FindByToken は指定トークンのセッションを取得する。
// 存在しない・期限切れの場合はnilを返す（行が残っていても期限切れは復元不可）。
func (r *PostgresSessionRepo) FindByToken(ctx context.Context, token string) (*model.Session, error) {
	session := &model.Session{}
	var userID sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT token, user_id, created_at, expires_at, last_touched_at
		 FROM sessions
		 WHERE token = $1 AND expires_at > now()`,
		token,
	).Scan(&session.Token, &userID, &session.CreatedAt, &session.ExpiresAt, &session.LastTouchedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}

	session.UserID = userID.String
	return session, nil
}

// Bind は匿名セッションにユーザーIDを紐付ける。
func (r *PostgresSessionRepo) Bind(ctx context.Context, token, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET user_id = $2 WHERE token = $1`,
		token, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to bind session: %w", err)
	}
	return nil
}

// Touch は最終アクセス透かしがthresholdより古い場合のみ更新する。
// WHERE句で条件判定するため、新しい場合は書き込みが発生しない。
func (r *PostgresSessionRepo) Touch(ctx context.Context, token string, threshold time.Duration) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET last_touched_at = now()
		 WHERE token = $1 AND last_touched_at < now() - ($2 * interval '1 second')`,
		token, int64(threshold.Seconds()),
	)
	if err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}
	return nil
}

// Delete はセッションを削除する。存在しないトークンはエラーとしない。
func (r *PostgresSessionRepo) Delete(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE token = $1`,
		token,
	)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteExpired は期限切れセッションを一括削除し、削除件数を返す。
func (r *PostgresSessionRepo) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at <= now()`,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	return result.RowsAffected()
}

// AppendFlash はセッションのdataカラムにフラッシュメッセージを追記する。
// jsonb操作により単一のUPDATEでアトミックに追記する。
func (r *PostgresSessionRepo) AppendFlash(ctx context.Context, token, kind, message string) error {
	if kind != "success" && kind != "error" {
		return fmt.Errorf("unknown flash kind: %s", kind)
	}

	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions
		 SET data = jsonb_set(data, ARRAY[$2],
			COALESCE(data->$2, '[]'::jsonb) || to_jsonb($3::text))
		 WHERE token = $1 AND expires_at > now()`,
		token, kind, message,
	)
	if err != nil {
		return fmt.Errorf("failed to append flash: %w", err)
	}
	return nil
}

// ConsumeFlash は蓄積されたフラッシュメッセージを取得し、同時にクリアする。
// CTEで取得とクリアを単一ステートメントにまとめる（exactly-once表示）。
func (r *PostgresSessionRepo) ConsumeFlash(ctx context.Context, token string) (*model.Flash, error) {
	var raw []byte
	err := r.db.QueryRowContext(ctx,
		`WITH old AS (
			SELECT token, data FROM sessions WHERE token = $1 AND expires_at > now()
		 )
		 UPDATE sessions s SET data = '{}'::jsonb
		 FROM old
		 WHERE s.token = old.token
		 RETURNING old.data`,
		token,
	).Scan(&raw)

	if err == sql.ErrNoRows {
		return &model.Flash{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to consume flash: %w", err)
	}

	flash := &model.Flash{}
	if err := json.Unmarshal(raw, flash); err != nil {
		return nil, fmt.Errorf("failed to decode flash data: %w", err)
	}
	return flash, nil
}

// compile-time interface check
var _ SessionRepository = (*PostgresSessionRepo)(nil)
