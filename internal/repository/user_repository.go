package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"userservice/internal/domain"
	"userservice/pkg/database"
	"userservice/pkg/logger"
	"userservice/pkg/metrics"
)

const userColumns = `id, name, email, phone, role, active, created_at, updated_at`

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type UserRepository struct {
	db     *sql.DB // nil when bound to a transaction
	q      querier
	logger logger.Logger
}

func NewUserRepository(db *sql.DB, logger logger.Logger) domain.UserRepository {
	return &UserRepository{
		db:     db,
		q:      db,
		logger: logger,
	}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (*domain.User, error) {
	var user domain.User
	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.Phone,
		&user.Role,
		&user.Active,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func observe(operation string, start time.Time) {
	metrics.RecordDatabaseOperation(operation, "user", time.Since(start))
}

func (r *UserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	defer observe("exists_by_email", time.Now())

	var exists bool
	err := r.q.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`, email).Scan(&exists)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to check email", map[string]interface{}{"email": email, "error": err.Error()})
		return false, fmt.Errorf("failed to check email: %w", err)
	}
	return exists, nil
}

func (r *UserRepository) ExistsByID(ctx context.Context, id int64) (bool, error) {
	defer observe("exists_by_id", time.Now())

	var exists bool
	err := r.q.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to check user id", map[string]interface{}{"id": id, "error": err.Error()})
		return false, fmt.Errorf("failed to check user id: %w", err)
	}
	return exists, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id int64) (*domain.User, error) {
	defer observe("find_by_id", time.Now())

	row := r.q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.logger.ErrorContext(ctx, "Failed to find user by id", map[string]interface{}{"id": id, "error": err.Error()})
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

func (r *UserRepository) FindAll(ctx context.Context) ([]*domain.User, error) {
	defer observe("find_all", time.Now())
	return r.list(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
}

func (r *UserRepository) FindByActive(ctx context.Context, active bool) ([]*domain.User, error) {
	defer observe("find_by_active", time.Now())
	return r.list(ctx, `SELECT `+userColumns+` FROM users WHERE active = $1 ORDER BY id`, active)
}

func (r *UserRepository) list(ctx context.Context, query string, args ...interface{}) ([]*domain.User, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to list users", map[string]interface{}{"error": err.Error()})
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := make([]*domain.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}

	return users, nil
}

// Save inserts users without an ID and updates the rest. Timestamps are
// always set here, whatever the caller put in them.
func (r *UserRepository) Save(ctx context.Context, user *domain.User) (*domain.User, error) {
	now := time.Now().UTC().Truncate(time.Microsecond)

	if user.ID == 0 {
		return r.insert(ctx, user, now)
	}
	return r.update(ctx, user, now)
}

func (r *UserRepository) insert(ctx context.Context, user *domain.User, now time.Time) (*domain.User, error) {
	defer observe("insert", time.Now())

	query := `
		INSERT INTO users (name, email, phone, role, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	user.CreatedAt = now
	user.UpdatedAt = now

	err := r.q.QueryRowContext(ctx, query,
		user.Name,
		user.Email,
		user.Phone,
		user.Role,
		user.Active,
		user.CreatedAt,
		user.UpdatedAt,
	).Scan(&user.ID)

	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, fmt.Errorf("%w: user with email %s", domain.ErrDuplicateResource, user.Email)
		}
		r.logger.ErrorContext(ctx, "Failed to insert user", map[string]interface{}{"email": user.Email, "error": err.Error()})
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}

	return user, nil
}

func (r *UserRepository) update(ctx context.Context, user *domain.User, now time.Time) (*domain.User, error) {
	defer observe("update", time.Now())

	query := `
		UPDATE users
		SET name = $1, email = $2, phone = $3, role = $4, active = $5, updated_at = $6
		WHERE id = $7
		RETURNING created_at
	`

	user.UpdatedAt = now

	err := r.q.QueryRowContext(ctx, query,
		user.Name,
		user.Email,
		user.Phone,
		user.Role,
		user.Active,
		user.UpdatedAt,
		user.ID,
	).Scan(&user.CreatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: user with id %d", domain.ErrNotFound, user.ID)
		}
		if database.IsUniqueViolation(err) {
			return nil, fmt.Errorf("%w: user with email %s", domain.ErrDuplicateResource, user.Email)
		}
		r.logger.ErrorContext(ctx, "Failed to update user", map[string]interface{}{"id": user.ID, "error": err.Error()})
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	return user, nil
}

func (r *UserRepository) DeleteByID(ctx context.Context, id int64) error {
	defer observe("delete", time.Now())

	if _, err := r.q.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id); err != nil {
		r.logger.ErrorContext(ctx, "Failed to delete user", map[string]interface{}{"id": id, "error": err.Error()})
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}

func (r *UserRepository) WithinTransaction(ctx context.Context, fn func(repo domain.UserRepository) error) (err error) {
	if r.db == nil {
		return fn(r)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				r.logger.ErrorContext(ctx, "Failed to roll back transaction", map[string]interface{}{"error": rbErr.Error()})
			}
		}
	}()

	if err = fn(&UserRepository{q: tx, logger: r.logger}); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
