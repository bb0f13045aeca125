package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-rules/internal/domain"
)

// TicketStore encapsulates ticket persistence. Get returns a nil ticket
// and a nil error when no ticket exists for the id.
type TicketStore interface {
	Create(ctx context.Context, ticket *domain.Ticket) (int64, error)
	Get(ctx context.Context, id int64) (*domain.Ticket, error)
	Update(ctx context.Context, ticket *domain.Ticket) error
}

// ErrTicketMissing is returned by Update when the ticket id is unknown.
var ErrTicketMissing = pgx.ErrNoRows

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository returns a Postgres-backed TicketStore.
func NewTicketRepository(pool *pgxpool.Pool) TicketStore {
	return &ticketRepository{pool: pool}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) (int64, error) {
	const query = `
        INSERT INTO tickets (title, description, assigned_username, priority, created_at, price_dollars, account_manager_username)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id`
	var id int64
	err := r.pool.QueryRow(ctx, query,
		ticket.Title,
		ticket.Description,
		usernameOf(ticket.AssignedUser),
		ticket.Priority,
		ticket.CreatedAt,
		ticket.PriceDollars,
		usernameOf(ticket.AccountManager),
	).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (r *ticketRepository) Get(ctx context.Context, id int64) (*domain.Ticket, error) {
	const query = `
        SELECT t.id, t.title, t.description, t.priority, t.created_at, t.price_dollars,
               a.id, a.username, a.name, a.email, a.created_at,
               m.id, m.username, m.name, m.email, m.created_at
        FROM tickets t
        JOIN users a ON a.username = t.assigned_username
        LEFT JOIN users m ON m.username = t.account_manager_username
        WHERE t.id=$1`

	var (
		ticket   domain.Ticket
		assignee domain.User
		mgrID    *int64
		mgrName  *string
		mgrFull  *string
		mgrEmail *string
		mgrAt    *time.Time
	)
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&ticket.ID,
		&ticket.Title,
		&ticket.Description,
		&ticket.Priority,
		&ticket.CreatedAt,
		&ticket.PriceDollars,
		&assignee.ID,
		&assignee.Username,
		&assignee.Name,
		&assignee.Email,
		&assignee.CreatedAt,
		&mgrID,
		&mgrName,
		&mgrFull,
		&mgrEmail,
		&mgrAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	ticket.AssignedUser = &assignee
	if mgrName != nil {
		ticket.AccountManager = &domain.User{
			ID:        *mgrID,
			Username:  *mgrName,
			Name:      *mgrFull,
			Email:     *mgrEmail,
			CreatedAt: *mgrAt,
		}
	}
	return &ticket, nil
}

// Update persists the mutable fields of a ticket: assignee and priority.
func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET assigned_username=$1, priority=$2
        WHERE id=$3`
	cmd, err := r.pool.Exec(ctx, query,
		usernameOf(ticket.AssignedUser),
		ticket.Priority,
		ticket.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrTicketMissing
	}
	return nil
}

func usernameOf(user *domain.User) *string {
	if user == nil {
		return nil
	}
	return &user.Username
}
