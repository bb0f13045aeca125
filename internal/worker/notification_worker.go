package worker

import (
	"github.com/spec-kit/ticket-rules/internal/service"
)

// StartNotificationWorker registers the high priority alert handlers.
func StartNotificationWorker(notificationService *service.NotificationService) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
}
