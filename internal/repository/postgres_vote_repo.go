package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/askboard/internal/model"
)

// PostgresVoteRepo はPostgreSQLを使用した投票リポジトリ。
type PostgresVoteRepo struct {
	db *sql.DB
}

// NewPostgresVoteRepo はPostgresVoteRepoを生成する。
func NewPostgresVoteRepo(db *sql.DB) *PostgresVoteRepo {
	return &PostgresVoteRepo{db: db}
}

// Upsert は投票を冪等にUPSERTし、上書き前の値を返す（初回投票は0）。
// ON CONFLICTで単一ステートメントのアトミック操作とし、
// 旧値はCTEで同時に取得する。
func (r *PostgresVoteRepo) Upsert(ctx context.Context, vote *model.Vote) (model.VoteValue, error) {
	var previous sql.NullInt64
	err := r.db.QueryRowContext(ctx,
		`WITH old AS (
			SELECT value FROM votes WHERE user_id = $1 AND answer_id = $2
		 ), upserted AS (
			INSERT INTO votes (user_id, answer_id, value, created_at, updated_at)
			VALUES ($1, $2, $3, now(), now())
			ON CONFLICT (user_id, answer_id)
			DO UPDATE SET value = EXCLUDED.value, updated_at = now()
		 )
		 SELECT value FROM old`,
		vote.UserID, vote.AnswerID, int(vote.Value),
	).Scan(&previous)

	if err == sql.ErrNoRows {
		// 旧値なし = 初回投票
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to upsert vote: %w", err)
	}
	return model.VoteValue(previous.Int64), nil
}

// compile-time interface check
var _ VoteRepository = (*PostgresVoteRepo)(nil)
