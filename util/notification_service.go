// util/notification_service.go

package util

import (
	"context"

	"go.uber.org/zap"

	"github.com/calltoleap/gatekeeper/chat"
	logger "github.com/calltoleap/gatekeeper/logging"
)

// NotificationService delivers user acknowledgments and operator alerts
// over the chat boundary. Delivery is best-effort throughout: a user with
// DMs disabled or a missing operator channel must never fail the operation
// that triggered the notification.
type NotificationService struct {
	chat              chat.Service
	operatorChannelID string
}

func NewNotificationService(chatSvc chat.Service, operatorChannelID string) *NotificationService {
	return &NotificationService{
		chat:              chatSvc,
		operatorChannelID: operatorChannelID,
	}
}

// SendDirect DMs the user. Failures are logged and swallowed.
func (n *NotificationService) SendDirect(ctx context.Context, userID, text string) {
	if err := n.chat.SendDirectMessage(ctx, userID, text); err != nil {
		logger.Warn("Failed to send direct message",
			zap.Error(err),
			zap.String("userID", userID))
	}
}

// NotifyOperator posts to the operator channel. Failures are logged and
// swallowed; when no operator channel is configured the alert is log-only.
func (n *NotificationService) NotifyOperator(ctx context.Context, text string) {
	if n.operatorChannelID == "" {
		logger.Warn("Operator alert (no operator channel configured)", zap.String("message", text))
		return
	}
	if err := n.chat.SendChannelMessage(ctx, n.operatorChannelID, text); err != nil {
		logger.Error("Failed to notify operator channel",
			zap.Error(err),
			zap.String("message", text))
	}
}
