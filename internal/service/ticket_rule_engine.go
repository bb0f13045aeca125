package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-rules/internal/domain"
	"github.com/spec-kit/ticket-rules/internal/repository"
	apperrors "github.com/spec-kit/ticket-rules/pkg/errorutil"
)

const (
	// escalationAge is how old a ticket must be, strictly, before the age rule fires.
	escalationAge = time.Hour

	priceStandard     = 50
	priceHighPriority = 100
)

// escalationKeywords are matched case-sensitively anywhere in the title.
var escalationKeywords = []string{"Crash", "Important", "Failure"}

type escalationRule string

const (
	ruleNone    escalationRule = ""
	ruleAge     escalationRule = "age"
	ruleKeyword escalationRule = "keyword"
)

// Notifier alerts administrators about tickets that end up HIGH priority.
type Notifier interface {
	NotifyHighPriority(ctx context.Context, title, assignedTo string) error
}

// TicketRuleEngine decides priority, pricing, notification and assignee for
// tickets. It holds no mutable state and is safe for concurrent use as long
// as its collaborators are.
type TicketRuleEngine struct {
	tickets  repository.TicketStore
	users    repository.UserDirectory
	notifier Notifier
	logger   *zap.Logger
	clock    func() time.Time
}

// TicketDependencies bundles collaborators for the rule engine.
// TicketStore, UserDirectory and Notifier are required.
type TicketDependencies struct {
	TicketStore   repository.TicketStore
	UserDirectory repository.UserDirectory
	Notifier      Notifier
	Logger        *zap.Logger
	Clock         func() time.Time
}

// TicketCreateInput describes ticket creation payload. An empty AssignedTo
// means no assignee was given.
type TicketCreateInput struct {
	Title            string
	Priority         domain.TicketPriority
	AssignedTo       string
	Description      string
	Created          time.Time
	IsPayingCustomer bool
}

// NewTicketRuleEngine constructs the engine.
func NewTicketRuleEngine(deps TicketDependencies) *TicketRuleEngine {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &TicketRuleEngine{
		tickets:  deps.TicketStore,
		users:    deps.UserDirectory,
		notifier: deps.Notifier,
		logger:   logger,
		clock:    clock,
	}
}

// CreateTicket validates input, resolves the assignee, applies escalation,
// notifies on HIGH priority, prices paying customers and stores the ticket.
// Nothing is stored when any earlier step fails.
func (e *TicketRuleEngine) CreateTicket(ctx context.Context, input TicketCreateInput) (int64, error) {
	if strings.TrimSpace(input.Title) == "" || strings.TrimSpace(input.Description) == "" {
		return 0, apperrors.NewInvalidTicket("title or description were empty", nil)
	}
	if !input.Priority.Valid() {
		return 0, apperrors.NewInvalidTicket("unknown priority", map[string]any{"priority": input.Priority})
	}

	user, err := e.lookupUser(ctx, input.AssignedTo)
	if err != nil {
		return 0, err
	}

	priority, rule := escalate(input.Priority, input.Title, input.Created, e.clock())
	if rule != ruleNone {
		e.logger.Debug("priority escalated",
			zap.String("rule", string(rule)),
			zap.String("from", string(input.Priority)),
			zap.String("to", string(priority)))
	}

	if priority == domain.TicketPriorityHigh {
		if err := e.notifier.NotifyHighPriority(ctx, input.Title, input.AssignedTo); err != nil {
			return 0, err
		}
	}

	var (
		price   float64
		manager *domain.User
	)
	if input.IsPayingCustomer {
		manager, err = e.users.AccountManager(ctx)
		if err != nil {
			return 0, err
		}
		price = priceStandard
		if priority == domain.TicketPriorityHigh {
			price = priceHighPriority
		}
	}

	ticket := &domain.Ticket{
		Title:          input.Title,
		Description:    input.Description,
		AssignedUser:   user,
		Priority:       priority,
		CreatedAt:      input.Created,
		PriceDollars:   price,
		AccountManager: manager,
	}

	id, err := e.tickets.Create(ctx, ticket)
	if err != nil {
		return 0, err
	}
	e.logger.Debug("ticket created",
		zap.Int64("ticket_id", id),
		zap.String("priority", string(priority)),
		zap.Float64("price_dollars", price))
	return id, nil
}

// AssignTicket moves a ticket to another user. Only the assignee changes.
func (e *TicketRuleEngine) AssignTicket(ctx context.Context, id int64, username string) error {
	user, err := e.lookupUser(ctx, username)
	if err != nil {
		return err
	}

	ticket, err := e.tickets.Get(ctx, id)
	if err != nil {
		return err
	}
	if ticket == nil {
		return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": id})
	}

	ticket.AssignedUser = user
	if err := e.tickets.Update(ctx, ticket); err != nil {
		return err
	}
	e.logger.Debug("ticket assigned", zap.Int64("ticket_id", id), zap.String("username", username))
	return nil
}

func (e *TicketRuleEngine) lookupUser(ctx context.Context, username string) (*domain.User, error) {
	user, err := e.users.Resolve(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperrors.NewUnknownUser(username)
	}
	return user, nil
}

// escalate applies at most one step. The age rule wins over the keyword
// rule, and HIGH is left untouched.
func escalate(priority domain.TicketPriority, title string, created, now time.Time) (domain.TicketPriority, escalationRule) {
	if priority == domain.TicketPriorityHigh {
		return priority, ruleNone
	}
	if created.Before(now.Add(-escalationAge)) {
		return priority.Escalate(), ruleAge
	}
	if hasEscalationKeyword(title) {
		return priority.Escalate(), ruleKeyword
	}
	return priority, ruleNone
}

func hasEscalationKeyword(title string) bool {
	for _, kw := range escalationKeywords {
		if strings.Contains(title, kw) {
			return true
		}
	}
	return false
}
