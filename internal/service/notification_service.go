package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-rules/internal/config"
	"github.com/spec-kit/ticket-rules/internal/events"
)

// ErrNoDispatcher is returned when a high priority alert cannot be published.
var ErrNoDispatcher = errors.New("notification dispatcher not configured")

// NotificationService delivers administrator alerts for high priority tickets.
// It satisfies Notifier by publishing an event that its handlers fan out.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	alerts     *redis.Client
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service. alerts may be nil, in which
// case the Redis alert queue is skipped.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, alerts *redis.Client, cfg config.NotificationConfig) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		alerts:     alerts,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketHighPriority, n.handleHighPriorityEmail)
	n.dispatcher.Subscribe(events.EventTicketHighPriority, n.handleHighPriorityAlert)
}

// NotifyHighPriority publishes a high priority event and returns any
// delivery error from the handlers.
func (n *NotificationService) NotifyHighPriority(ctx context.Context, title, assignedTo string) error {
	if n.dispatcher == nil {
		n.logger.Warn("high priority alert dropped", zap.String("title", title), zap.String("assigned_to", assignedTo))
		return ErrNoDispatcher
	}
	return n.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventTicketHighPriority,
		Timestamp: time.Now(),
		Payload: events.TicketHighPriorityPayload{
			Title:      title,
			AssignedTo: assignedTo,
		},
	})
}

func (n *NotificationService) handleHighPriorityEmail(ctx context.Context, event events.Event) error {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" || strings.TrimSpace(n.cfg.AdminEmail) == "" {
		return nil
	}
	payload, ok := event.Payload.(events.TicketHighPriorityPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	n.logger.Info("sendEmailToAdministrator",
		zap.String("event_id", event.ID),
		zap.String("from", n.cfg.EmailFrom),
		zap.String("to", n.cfg.AdminEmail),
		zap.String("title", payload.Title),
		zap.String("assigned_to", payload.AssignedTo))
	return nil
}

func (n *NotificationService) handleHighPriorityAlert(ctx context.Context, event events.Event) error {
	if n.alerts == nil {
		return nil
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode alert: %w", err)
	}
	if err := n.alerts.RPush(ctx, n.cfg.AlertQueue, body).Err(); err != nil {
		return fmt.Errorf("enqueue alert: %w", err)
	}
	n.logger.Debug("high priority alert queued",
		zap.String("event_id", event.ID),
		zap.String("queue", n.cfg.AlertQueue))
	return nil
}
