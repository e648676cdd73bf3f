package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/hitoshi/askboard/internal/model"
)

// uniqueViolation はPostgreSQLの一意性制約違反エラーコード（23505）。
const uniqueViolation = "23505"

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

const userColumns = `id, username, email, name, password_hash,
	questions_asked, answers_given, upvotes_received, downvotes_received,
	created_at, updated_at`

// scanUser は1行をmodel.Userに読み込む。
func scanUser(row *sql.Row) (*model.User, error) {
	user := &model.User{}
	var email, passwordHash sql.NullString
	err := row.Scan(
		&user.ID, &user.Username, &email, &user.Name, &passwordHash,
		&user.QuestionsAsked, &user.AnswersGiven, &user.UpvotesReceived, &user.DownvotesReceived,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	user.Email = email.String
	user.PasswordHash = passwordHash.String
	return user, nil
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`,
		id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}
	return user, nil
}

// FindByUsername はユーザー名でユーザーを検索する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = $1`,
		username,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by username: %w", err)
	}
	return user, nil
}

// FindByFederatedID は(provider, subject_id)でユーザーを検索する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByFederatedID(ctx context.Context, provider, subjectID string) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT u.id, u.username, u.email, u.name, u.password_hash,
			u.questions_asked, u.answers_given, u.upvotes_received, u.downvotes_received,
			u.created_at, u.updated_at
		 FROM users u
		 JOIN identities i ON i.user_id = u.id
		 WHERE i.provider = $1 AND i.subject_id = $2`,
		provider, subjectID,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by federated ID: %w", err)
	}
	return user, nil
}

// Create はユーザーを作成する。identityがnilでない場合は同一トランザクションで
// identitiesレコードも作成する。一意性制約違反はConflictのAppErrorに変換する。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User, identity *model.Identity) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// ユーザーを作成
	_, err = tx.ExecContext(ctx,
		`INSERT INTO users (id, username, email, name, password_hash,
			questions_asked, answers_given, upvotes_received, downvotes_received,
			created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		user.ID, user.Username, nullString(user.Email), user.Name, nullString(user.PasswordHash),
		user.QuestionsAsked, user.AnswersGiven, user.UpvotesReceived, user.DownvotesReceived,
		user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return model.NewConflictError("このユーザー名またはメールアドレスは既に使用されています。")
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}

	// identityを作成
	if identity != nil {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO identities (id, user_id, provider, subject_id, created_at)
			 VALUES ($1, $2, $3, $4, $5)`,
			identity.ID, identity.UserID, identity.Provider, identity.SubjectID, identity.CreatedAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return model.NewConflictError("この外部アカウントは既に登録されています。")
			}
			return fmt.Errorf("failed to insert identity: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return model.NewConflictError("このユーザー名またはメールアドレスは既に使用されています。")
		}
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// IncrementCounter は非正規化カウンタをdeltaだけ加算する。
// 対象ユーザーが存在しない場合は警告ログを出すのみでエラーとしない。
func (r *PostgresUserRepo) IncrementCounter(ctx context.Context, userID string, counter model.Counter, delta int) error {
	// counterは列名に展開されるため、既知の値のみ許可する
	switch counter {
	case model.CounterQuestionsAsked, model.CounterAnswersGiven,
		model.CounterUpvotesReceived, model.CounterDownvotesReceived:
	default:
		return fmt.Errorf("unknown counter: %s", counter)
	}

	result, err := r.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE users SET %s = %s + $1, updated_at = now() WHERE id = $2`, counter, counter),
		delta, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to increment counter: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err == nil && rowsAffected == 0 {
		slog.Warn("counter increment skipped: user not found",
			slog.String("user_id", userID),
			slog.String("counter", string(counter)),
		)
	}
	return nil
}

// isUniqueViolation はPostgreSQLの一意性制約違反かどうかを判定する。
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == uniqueViolation
	}
	return false
}

// nullString は空文字列をNULLとして格納するためのヘルパー。
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
