package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/askboard/internal/model"
)

// PostgresQuestionRepo はPostgreSQLを使用した質問リポジトリ。
type PostgresQuestionRepo struct {
	db *sql.DB
}

// NewPostgresQuestionRepo はPostgresQuestionRepoを生成する。
func NewPostgresQuestionRepo(db *sql.DB) *PostgresQuestionRepo {
	return &PostgresQuestionRepo{db: db}
}

// Create は質問を作成する。
func (r *PostgresQuestionRepo) Create(ctx context.Context, question *model.Question) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO questions (id, author_id, title, body, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		question.ID, question.AuthorID, question.Title, question.Body,
		question.CreatedAt, question.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create question: %w", err)
	}
	return nil
}

// FindByID は指定IDの質問を投稿者名付きで取得する。見つからない場合はnilを返す。
func (r *PostgresQuestionRepo) FindByID(ctx context.Context, id string) (*model.QuestionWithAuthor, error) {
	q := &model.QuestionWithAuthor{}
	err := r.db.QueryRowContext(ctx,
		`SELECT q.id, q.author_id, q.title, q.body, q.created_at, q.updated_at,
			u.name,
			(SELECT count(*) FROM answers a WHERE a.question_id = q.id)
		 FROM questions q
		 JOIN users u ON u.id = q.author_id
		 WHERE q.id = $1`,
		id,
	).Scan(&q.ID, &q.AuthorID, &q.Title, &q.Body, &q.CreatedAt, &q.UpdatedAt,
		&q.AuthorName, &q.AnswerCount)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find question: %w", err)
	}
	return q, nil
}

// ListRecent は新着順の質問一覧を投稿者名・回答数付きで取得する。
func (r *PostgresQuestionRepo) ListRecent(ctx context.Context, limit int) ([]model.QuestionWithAuthor, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT q.id, q.author_id, q.title, q.body, q.created_at, q.updated_at,
			u.name,
			(SELECT count(*) FROM answers a WHERE a.question_id = q.id)
		 FROM questions q
		 JOIN users u ON u.id = q.author_id
		 ORDER BY q.created_at DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list questions: %w", err)
	}
	defer rows.Close()

	var questions []model.QuestionWithAuthor
	for rows.Next() {
		q := model.QuestionWithAuthor{}
		if err := rows.Scan(&q.ID, &q.AuthorID, &q.Title, &q.Body, &q.CreatedAt, &q.UpdatedAt,
			&q.AuthorName, &q.AnswerCount); err != nil {
			return nil, fmt.Errorf("failed to scan question: %w", err)
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate questions: %w", err)
	}
	return questions, nil
}

// compile-time interface check
var _ QuestionRepository = (*PostgresQuestionRepo)(nil)
