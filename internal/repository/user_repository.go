package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-rules/internal/domain"
)

// ErrNoAccountManager means the directory has no designated account manager.
var ErrNoAccountManager = errors.New("no account manager configured")

// UserDirectory resolves users for ticket rules. Resolve returns a nil user
// and a nil error for an empty or unknown username.
type UserDirectory interface {
	Resolve(ctx context.Context, username string) (*domain.User, error)
	AccountManager(ctx context.Context) (*domain.User, error)
}

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a Postgres-backed UserDirectory. Every lookup
// holds its own pooled connection for the duration of the call.
func NewUserRepository(pool *pgxpool.Pool) UserDirectory {
	return &userRepository{pool: pool}
}

func (r *userRepository) Resolve(ctx context.Context, username string) (*domain.User, error) {
	if username == "" {
		return nil, nil
	}
	const query = `
        SELECT id, username, name, email, created_at
        FROM users WHERE username=$1`

	var user *domain.User
	err := r.withConn(ctx, func(conn *pgxpool.Conn) error {
		var err error
		user, err = scanUser(conn.QueryRow(ctx, query, username))
		return err
	})
	return user, err
}

func (r *userRepository) AccountManager(ctx context.Context) (*domain.User, error) {
	const query = `
        SELECT id, username, name, email, created_at
        FROM users WHERE is_account_manager
        ORDER BY id LIMIT 1`

	var user *domain.User
	err := r.withConn(ctx, func(conn *pgxpool.Conn) error {
		var err error
		user, err = scanUser(conn.QueryRow(ctx, query))
		return err
	})
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrNoAccountManager
	}
	return user, nil
}

// withConn acquires a connection, runs fn and releases the connection on
// every return path.
func (r *userRepository) withConn(ctx context.Context, fn func(conn *pgxpool.Conn) error) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()
	return fn(conn)
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var user domain.User
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Name,
		&user.Email,
		&user.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}
