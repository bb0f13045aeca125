package repository

import (
	"context"
	"sync"
	"time"

	"github.com/spec-kit/ticket-rules/internal/domain"
)

// InMemoryTicketStore keeps tickets in a map keyed by sequential ids.
type InMemoryTicketStore struct {
	mu     sync.RWMutex
	nextID int64
	byID   map[int64]domain.Ticket
}

// NewInMemoryTicketStore returns an empty store. The first id issued is 1.
func NewInMemoryTicketStore() *InMemoryTicketStore {
	return &InMemoryTicketStore{
		byID: make(map[int64]domain.Ticket),
	}
}

func (s *InMemoryTicketStore) Create(ctx context.Context, ticket *domain.Ticket) (int64, error) {
	_ = ctx

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	stored := cloneTicket(*ticket)
	stored.ID = s.nextID
	s.byID[stored.ID] = stored
	return stored.ID, nil
}

func (s *InMemoryTicketStore) Get(ctx context.Context, id int64) (*domain.Ticket, error) {
	_ = ctx

	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.byID[id]
	if !ok {
		return nil, nil
	}
	out := cloneTicket(t)
	return &out, nil
}

func (s *InMemoryTicketStore) Update(ctx context.Context, ticket *domain.Ticket) error {
	_ = ctx

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.byID[ticket.ID]
	if !ok {
		return ErrTicketMissing
	}
	current.AssignedUser = cloneUser(ticket.AssignedUser)
	current.Priority = ticket.Priority
	s.byID[ticket.ID] = current
	return nil
}

// Len reports how many tickets are stored.
func (s *InMemoryTicketStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// InMemoryUserDirectory resolves users from a fixed set.
type InMemoryUserDirectory struct {
	mu             sync.RWMutex
	byUsername     map[string]domain.User
	accountManager string
	nextID         int64
}

// NewInMemoryUserDirectory creates a directory whose account manager is the
// user named accountManager. Seed it with Add.
func NewInMemoryUserDirectory(accountManager string) *InMemoryUserDirectory {
	return &InMemoryUserDirectory{
		byUsername:     make(map[string]domain.User),
		accountManager: accountManager,
	}
}

// Add registers users by username, assigning ids and timestamps when unset.
func (d *InMemoryUserDirectory) Add(users ...domain.User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, u := range users {
		if u.ID == 0 {
			d.nextID++
			u.ID = d.nextID
		} else if u.ID > d.nextID {
			d.nextID = u.ID
		}
		if u.CreatedAt.IsZero() {
			u.CreatedAt = time.Now()
		}
		d.byUsername[u.Username] = u
	}
}

func (d *InMemoryUserDirectory) Resolve(ctx context.Context, username string) (*domain.User, error) {
	_ = ctx
	if username == "" {
		return nil, nil
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	u, ok := d.byUsername[username]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (d *InMemoryUserDirectory) AccountManager(ctx context.Context) (*domain.User, error) {
	_ = ctx

	d.mu.RLock()
	defer d.mu.RUnlock()

	u, ok := d.byUsername[d.accountManager]
	if !ok {
		return nil, ErrNoAccountManager
	}
	return &u, nil
}

func cloneTicket(t domain.Ticket) domain.Ticket {
	t.AssignedUser = cloneUser(t.AssignedUser)
	t.AccountManager = cloneUser(t.AccountManager)
	return t
}

func cloneUser(u *domain.User) *domain.User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}
