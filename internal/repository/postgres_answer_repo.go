package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/askboard/internal/model"
)

// PostgresAnswerRepo はPostgreSQLを使用した回答リポジトリ。
type PostgresAnswerRepo struct {
	db *sql.DB
}

// NewPostgresAnswerRepo はPostgresAnswerRepoを生成する。
func NewPostgresAnswerRepo(db *sql.DB) *PostgresAnswerRepo {
	return &PostgresAnswerRepo{db: db}
}

// Create は回答を作成する。
func (r *PostgresAnswerRepo) Create(ctx context.Context, answer *model.Answer) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO answers (id, question_id, author_id, body, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		answer.ID, answer.QuestionID, answer.AuthorID, answer.Body, answer.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create answer: %w", err)
	}
	return nil
}

// FindByID は指定IDの回答を取得する。見つからない場合はnilを返す。
func (r *PostgresAnswerRepo) FindByID(ctx context.Context, id string) (*model.Answer, error) {
	answer := &model.Answer{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, question_id, author_id, body, created_at
		 FROM answers WHERE id = $1`,
		id,
	).Scan(&answer.ID, &answer.QuestionID, &answer.AuthorID, &answer.Body, &answer.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find answer: %w", err)
	}
	return answer, nil
}

// ListByQuestion は質問に対する回答一覧を投票集計・投稿者名付きで取得する。
func (r *PostgresAnswerRepo) ListByQuestion(ctx context.Context, questionID string) ([]model.AnswerWithAuthor, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT a.id, a.question_id, a.author_id, a.body, a.created_at,
			u.name,
			COALESCE(sum(CASE WHEN v.value = 1 THEN 1 ELSE 0 END), 0),
			COALESCE(sum(CASE WHEN v.value = -1 THEN 1 ELSE 0 END), 0)
		 FROM answers a
		 JOIN users u ON u.id = a.author_id
		 LEFT JOIN votes v ON v.answer_id = a.id
		 WHERE a.question_id = $1
		 GROUP BY a.id, u.name
		 ORDER BY a.created_at ASC`,
		questionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list answers: %w", err)
	}
	defer rows.Close()

	var answers []model.AnswerWithAuthor
	for rows.Next() {
		a := model.AnswerWithAuthor{}
		if err := rows.Scan(&a.ID, &a.QuestionID, &a.AuthorID, &a.Body, &a.CreatedAt,
			&a.AuthorName, &a.Upvotes, &a.Downvotes); err != nil {
			return nil, fmt.Errorf("failed to scan answer: %w", err)
		}
		answers = append(answers, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate answers: %w", err)
	}
	return answers, nil
}

// compile-time interface check
var _ AnswerRepository = (*PostgresAnswerRepo)(nil)
