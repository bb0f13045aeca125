package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-rules/internal/domain"
	"github.com/spec-kit/ticket-rules/internal/repository"
	apperrors "github.com/spec-kit/ticket-rules/pkg/errorutil"
)

// ==========================
// Test Helpers
// ==========================

var testNow = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

type spyStore struct {
	*repository.InMemoryTicketStore
	mu        sync.Mutex
	creates   int
	gets      int
	updates   int
	createErr error
}

func (s *spyStore) Create(ctx context.Context, ticket *domain.Ticket) (int64, error) {
	s.mu.Lock()
	s.creates++
	s.mu.Unlock()
	if s.createErr != nil {
		return 0, s.createErr
	}
	return s.InMemoryTicketStore.Create(ctx, ticket)
}

func (s *spyStore) Get(ctx context.Context, id int64) (*domain.Ticket, error) {
	s.mu.Lock()
	s.gets++
	s.mu.Unlock()
	return s.InMemoryTicketStore.Get(ctx, id)
}

func (s *spyStore) Update(ctx context.Context, ticket *domain.Ticket) error {
	s.mu.Lock()
	s.updates++
	s.mu.Unlock()
	return s.InMemoryTicketStore.Update(ctx, ticket)
}

type spyDirectory struct {
	*repository.InMemoryUserDirectory
	mu           sync.Mutex
	resolves     int
	managerCalls int
	resolveErr   error
	managerErr   error
}

func (d *spyDirectory) Resolve(ctx context.Context, username string) (*domain.User, error) {
	d.mu.Lock()
	d.resolves++
	d.mu.Unlock()
	if d.resolveErr != nil {
		return nil, d.resolveErr
	}
	return d.InMemoryUserDirectory.Resolve(ctx, username)
}

func (d *spyDirectory) AccountManager(ctx context.Context) (*domain.User, error) {
	d.mu.Lock()
	d.managerCalls++
	d.mu.Unlock()
	if d.managerErr != nil {
		return nil, d.managerErr
	}
	return d.InMemoryUserDirectory.AccountManager(ctx)
}

type notification struct {
	title      string
	assignedTo string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notification
	err  error
}

func (n *recordingNotifier) NotifyHighPriority(ctx context.Context, title, assignedTo string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, notification{title: title, assignedTo: assignedTo})
	return nil
}

type fixture struct {
	engine   *TicketRuleEngine
	store    *spyStore
	dir      *spyDirectory
	notifier *recordingNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	users := repository.NewInMemoryUserDirectory("manager")
	users.Add(
		domain.User{Username: "alice"},
		domain.User{Username: "bob"},
		domain.User{Username: "manager"},
	)
	f := &fixture{
		store:    &spyStore{InMemoryTicketStore: repository.NewInMemoryTicketStore()},
		dir:      &spyDirectory{InMemoryUserDirectory: users},
		notifier: &recordingNotifier{},
	}
	f.engine = NewTicketRuleEngine(TicketDependencies{
		TicketStore:   f.store,
		UserDirectory: f.dir,
		Notifier:      f.notifier,
		Clock:         func() time.Time { return testNow },
	})
	return f
}

func validInput() TicketCreateInput {
	return TicketCreateInput{
		Title:       "Routine request",
		Priority:    domain.TicketPriorityLow,
		AssignedTo:  "alice",
		Description: "Please reset my password",
		Created:     testNow,
	}
}

func (f *fixture) stored(t *testing.T, id int64) *domain.Ticket {
	t.Helper()
	ticket, err := f.store.InMemoryTicketStore.Get(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, ticket)
	return ticket
}

// ==========================
// CreateTicket: validation and resolution
// ==========================

func TestCreateTicket_InvalidInput(t *testing.T) {
	tests := []struct {
		name        string
		title       string
		description string
	}{
		{name: "empty title", title: "", description: "desc"},
		{name: "whitespace title", title: "   ", description: "desc"},
		{name: "tab and newline title", title: "\t\n", description: "desc"},
		{name: "empty description", title: "Title", description: ""},
		{name: "whitespace description", title: "Title", description: "  \t "},
		{name: "both empty", title: "", description: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			input := validInput()
			input.Title = tt.title
			input.Description = tt.description

			id, err := f.engine.CreateTicket(context.Background(), input)

			assert.ErrorIs(t, err, apperrors.ErrInvalidTicket)
			assert.Zero(t, id)
			assert.Zero(t, f.dir.resolves, "validation happens before any collaborator call")
			assert.Zero(t, f.store.creates)
			assert.Zero(t, f.store.Len())
		})
	}
}

func TestCreateTicket_UnknownPriorityIsInvalid(t *testing.T) {
	f := newFixture(t)
	input := validInput()
	input.Priority = "URGENT"

	_, err := f.engine.CreateTicket(context.Background(), input)

	assert.ErrorIs(t, err, apperrors.ErrInvalidTicket)
	assert.Zero(t, f.store.creates)
}

func TestCreateTicket_UnknownUser(t *testing.T) {
	for _, username := range []string{"", "ghost"} {
		t.Run("assignedTo="+username, func(t *testing.T) {
			f := newFixture(t)
			input := validInput()
			input.AssignedTo = username
			input.Created = testNow.Add(-2 * time.Hour)
			input.Priority = domain.TicketPriorityMedium

			_, err := f.engine.CreateTicket(context.Background(), input)

			assert.ErrorIs(t, err, apperrors.ErrUnknownUser)
			assert.Empty(t, f.notifier.sent, "no notification before the user resolves")
			assert.Zero(t, f.store.creates)
		})
	}
}

func TestCreateTicket_DirectoryErrorPropagates(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("directory unavailable")
	f.dir.resolveErr = boom

	_, err := f.engine.CreateTicket(context.Background(), validInput())

	assert.Same(t, boom, err)
	assert.Zero(t, f.store.creates)
}

// ==========================
// CreateTicket: escalation and notification
// ==========================

func TestCreateTicket_Escalation(t *testing.T) {
	old := testNow.Add(-2 * time.Hour)
	recent := testNow.Add(-10 * time.Minute)

	tests := []struct {
		name     string
		priority domain.TicketPriority
		title    string
		created  time.Time
		want     domain.TicketPriority
	}{
		{name: "low recent plain", priority: domain.TicketPriorityLow, title: "Routine request", created: recent, want: domain.TicketPriorityLow},
		{name: "medium recent plain", priority: domain.TicketPriorityMedium, title: "Routine request", created: recent, want: domain.TicketPriorityMedium},
		{name: "low old", priority: domain.TicketPriorityLow, title: "Routine request", created: old, want: domain.TicketPriorityMedium},
		{name: "medium old", priority: domain.TicketPriorityMedium, title: "Routine request", created: old, want: domain.TicketPriorityHigh},
		{name: "low keyword Crash", priority: domain.TicketPriorityLow, title: "Crash on login", created: recent, want: domain.TicketPriorityMedium},
		{name: "medium keyword Important", priority: domain.TicketPriorityMedium, title: "Important: invoice", created: recent, want: domain.TicketPriorityHigh},
		{name: "keyword inside word", priority: domain.TicketPriorityLow, title: "DiskFailures everywhere", created: recent, want: domain.TicketPriorityMedium},
		{name: "keyword is case sensitive", priority: domain.TicketPriorityLow, title: "crash on login", created: recent, want: domain.TicketPriorityLow},
		{name: "old and keyword is one step", priority: domain.TicketPriorityLow, title: "Crash Failure Important", created: old, want: domain.TicketPriorityMedium},
		{name: "high old keyword unchanged", priority: domain.TicketPriorityHigh, title: "Crash", created: old, want: domain.TicketPriorityHigh},
		{name: "high recent plain unchanged", priority: domain.TicketPriorityHigh, title: "Routine request", created: recent, want: domain.TicketPriorityHigh},
		{name: "exactly one hour is not old", priority: domain.TicketPriorityLow, title: "Routine request", created: testNow.Add(-time.Hour), want: domain.TicketPriorityLow},
		{name: "just over one hour is old", priority: domain.TicketPriorityLow, title: "Routine request", created: testNow.Add(-time.Hour - time.Nanosecond), want: domain.TicketPriorityMedium},
		{name: "future created is not old", priority: domain.TicketPriorityMedium, title: "Routine request", created: testNow.Add(time.Hour), want: domain.TicketPriorityMedium},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			input := validInput()
			input.Priority = tt.priority
			input.Title = tt.title
			input.Created = tt.created

			id, err := f.engine.CreateTicket(context.Background(), input)
			require.NoError(t, err)

			ticket := f.stored(t, id)
			assert.Equal(t, tt.want, ticket.Priority)

			if tt.want == domain.TicketPriorityHigh {
				assert.Equal(t, []notification{{title: tt.title, assignedTo: "alice"}}, f.notifier.sent)
			} else {
				assert.Empty(t, f.notifier.sent)
			}
		})
	}
}

func TestCreateTicket_NotifierErrorPropagates(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("mail relay down")
	f.notifier.err = boom
	input := validInput()
	input.Priority = domain.TicketPriorityHigh
	input.IsPayingCustomer = true

	_, err := f.engine.CreateTicket(context.Background(), input)

	assert.Same(t, boom, err)
	assert.Zero(t, f.dir.managerCalls, "pricing runs after notification")
	assert.Zero(t, f.store.creates)
}

// ==========================
// CreateTicket: pricing and persistence
// ==========================

func TestCreateTicket_Pricing(t *testing.T) {
	tests := []struct {
		name        string
		paying      bool
		priority    domain.TicketPriority
		wantPrice   float64
		wantManager bool
	}{
		{name: "free low", paying: false, priority: domain.TicketPriorityLow, wantPrice: 0},
		{name: "free high", paying: false, priority: domain.TicketPriorityHigh, wantPrice: 0},
		{name: "paying low", paying: true, priority: domain.TicketPriorityLow, wantPrice: 50, wantManager: true},
		{name: "paying medium", paying: true, priority: domain.TicketPriorityMedium, wantPrice: 50, wantManager: true},
		{name: "paying high", paying: true, priority: domain.TicketPriorityHigh, wantPrice: 100, wantManager: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			input := validInput()
			input.Priority = tt.priority
			input.IsPayingCustomer = tt.paying

			id, err := f.engine.CreateTicket(context.Background(), input)
			require.NoError(t, err)

			ticket := f.stored(t, id)
			assert.Equal(t, tt.wantPrice, ticket.PriceDollars)
			if tt.wantManager {
				require.NotNil(t, ticket.AccountManager)
				assert.Equal(t, "manager", ticket.AccountManager.Username)
				assert.Equal(t, 1, f.dir.managerCalls)
			} else {
				assert.Nil(t, ticket.AccountManager)
				assert.Zero(t, f.dir.managerCalls)
			}
		})
	}
}

func TestCreateTicket_AccountManagerLookedUpEveryCall(t *testing.T) {
	f := newFixture(t)
	input := validInput()
	input.IsPayingCustomer = true

	for i := 0; i < 3; i++ {
		_, err := f.engine.CreateTicket(context.Background(), input)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, f.dir.managerCalls)
}

func TestCreateTicket_AccountManagerErrorPropagates(t *testing.T) {
	f := newFixture(t)
	f.dir.managerErr = repository.ErrNoAccountManager
	input := validInput()
	input.IsPayingCustomer = true

	_, err := f.engine.CreateTicket(context.Background(), input)

	assert.ErrorIs(t, err, repository.ErrNoAccountManager)
	assert.Zero(t, f.store.creates)
}

func TestCreateTicket_StoresCompleteTicket(t *testing.T) {
	f := newFixture(t)
	input := validInput()
	input.Title = "  Padded title  "

	id, err := f.engine.CreateTicket(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	ticket := f.stored(t, id)
	assert.Equal(t, id, ticket.ID)
	assert.Equal(t, "  Padded title  ", ticket.Title)
	assert.Equal(t, input.Description, ticket.Description)
	require.NotNil(t, ticket.AssignedUser)
	assert.Equal(t, "alice", ticket.AssignedUser.Username)
	assert.True(t, testNow.Equal(ticket.CreatedAt))
}

func TestCreateTicket_StoreErrorPropagates(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("insert failed")
	f.store.createErr = boom

	id, err := f.engine.CreateTicket(context.Background(), validInput())

	assert.Same(t, boom, err)
	assert.Zero(t, id)
}

func TestCreateTicket_ConcurrentCallsGetDistinctIDs(t *testing.T) {
	f := newFixture(t)

	const n = 20
	var wg sync.WaitGroup
	ids := make([]int64, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := f.engine.CreateTicket(context.Background(), validInput())
			assert.NoError(t, err)
			ids[i] = id
		}(i)
	}
	wg.Wait()

	seen := map[int64]bool{}
	for _, id := range ids {
		assert.False(t, seen[id])
		seen[id] = true
	}
	assert.Equal(t, n, f.store.Len())
}

// ==========================
// Scenarios
// ==========================

func TestScenarioA_KeywordEscalatesRecentTicket(t *testing.T) {
	f := newFixture(t)

	id, err := f.engine.CreateTicket(context.Background(), TicketCreateInput{
		Title:       "Crash on login",
		Priority:    domain.TicketPriorityLow,
		AssignedTo:  "alice",
		Description: "App crashes after SSO",
		Created:     testNow,
	})
	require.NoError(t, err)

	ticket := f.stored(t, id)
	assert.Equal(t, domain.TicketPriorityMedium, ticket.Priority)
	assert.Zero(t, ticket.PriceDollars)
	assert.Nil(t, ticket.AccountManager)
	assert.Empty(t, f.notifier.sent)
}

func TestScenarioB_AgeEscalatesPayingCustomerToHigh(t *testing.T) {
	f := newFixture(t)

	id, err := f.engine.CreateTicket(context.Background(), TicketCreateInput{
		Title:            "Routine request",
		Priority:         domain.TicketPriorityMedium,
		AssignedTo:       "alice",
		Description:      "Need a new license",
		Created:          testNow.Add(-2 * time.Hour),
		IsPayingCustomer: true,
	})
	require.NoError(t, err)

	ticket := f.stored(t, id)
	assert.Equal(t, domain.TicketPriorityHigh, ticket.Priority)
	assert.Equal(t, float64(100), ticket.PriceDollars)
	require.NotNil(t, ticket.AccountManager)
	assert.Equal(t, "manager", ticket.AccountManager.Username)
	assert.Equal(t, []notification{{title: "Routine request", assignedTo: "alice"}}, f.notifier.sent)
}

func TestScenarioC_AgeRuleSuppressesKeywordRule(t *testing.T) {
	f := newFixture(t)

	id, err := f.engine.CreateTicket(context.Background(), TicketCreateInput{
		Title:       "Crash",
		Priority:    domain.TicketPriorityMedium,
		AssignedTo:  "alice",
		Description: "Server crashed overnight",
		Created:     testNow.Add(-2 * time.Hour),
	})
	require.NoError(t, err)

	ticket := f.stored(t, id)
	assert.Equal(t, domain.TicketPriorityHigh, ticket.Priority)
	assert.Zero(t, ticket.PriceDollars)
	assert.Len(t, f.notifier.sent, 1)
}

func TestScenarioD_AssignMissingTicket(t *testing.T) {
	f := newFixture(t)

	err := f.engine.AssignTicket(context.Background(), 999, "bob")

	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	var de *apperrors.DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, int64(999), de.Details["ticket_id"])
	assert.Zero(t, f.store.updates)
}

func TestScenarioE_AssignWithoutUsername(t *testing.T) {
	f := newFixture(t)

	err := f.engine.AssignTicket(context.Background(), 5, "")

	assert.ErrorIs(t, err, apperrors.ErrUnknownUser)
	assert.Zero(t, f.store.gets, "ticket is not fetched when the user is unresolved")
}

// ==========================
// AssignTicket
// ==========================

func TestAssignTicket_ChangesOnlyAssignee(t *testing.T) {
	f := newFixture(t)
	input := validInput()
	input.Priority = domain.TicketPriorityMedium
	input.IsPayingCustomer = true
	id, err := f.engine.CreateTicket(context.Background(), input)
	require.NoError(t, err)
	before := f.stored(t, id)

	require.NoError(t, f.engine.AssignTicket(context.Background(), id, "bob"))

	after := f.stored(t, id)
	require.NotNil(t, after.AssignedUser)
	assert.Equal(t, "bob", after.AssignedUser.Username)
	assert.Equal(t, before.Priority, after.Priority)
	assert.Equal(t, before.PriceDollars, after.PriceDollars)
	assert.Equal(t, before.AccountManager, after.AccountManager)
	assert.Equal(t, before.Title, after.Title)
	assert.Equal(t, 1, f.store.updates)
}

func TestAssignTicket_UnknownUser(t *testing.T) {
	f := newFixture(t)
	id, err := f.engine.CreateTicket(context.Background(), validInput())
	require.NoError(t, err)

	err = f.engine.AssignTicket(context.Background(), id, "ghost")

	assert.ErrorIs(t, err, apperrors.ErrUnknownUser)
	assert.Zero(t, f.store.gets)
	assert.Equal(t, "alice", f.stored(t, id).AssignedUser.Username)
}

func TestAssignTicket_DirectoryErrorPropagates(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("directory unavailable")
	f.dir.resolveErr = boom

	err := f.engine.AssignTicket(context.Background(), 1, "bob")

	assert.Same(t, boom, err)
	assert.Zero(t, f.store.gets)
}

// ==========================
// escalate
// ==========================

func TestEscalate_ReportsRule(t *testing.T) {
	old := testNow.Add(-3 * time.Hour)

	p, rule := escalate(domain.TicketPriorityLow, "Important", old, testNow)
	assert.Equal(t, domain.TicketPriorityMedium, p)
	assert.Equal(t, ruleAge, rule)

	p, rule = escalate(domain.TicketPriorityLow, "Important", testNow, testNow)
	assert.Equal(t, domain.TicketPriorityMedium, p)
	assert.Equal(t, ruleKeyword, rule)

	p, rule = escalate(domain.TicketPriorityHigh, "Important", old, testNow)
	assert.Equal(t, domain.TicketPriorityHigh, p)
	assert.Equal(t, ruleNone, rule)
}
