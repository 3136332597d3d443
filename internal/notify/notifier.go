package notify

import (
	"context"

	"github.com/keydeck/keydeck-backend/pkg/db/models"
	"github.com/keydeck/keydeck-backend/pkg/logger"
)

// Notifier is the narrow contract the engine uses to reach buyers and staff.
// Sends are best-effort: a failed send never unwinds a delivery.
type Notifier interface {
	SendToUser(ctx context.Context, userID, content string) error
	SendToChannel(ctx context.Context, channelID, content string) error
	SendToStaffLog(ctx context.Context, store *models.Store, content string)
}

// ChatSender is the surface pkg/chat's client exposes.
type ChatSender interface {
	SendToUser(ctx context.Context, userID, content string) error
	SendToChannel(ctx context.Context, channelID, content string) error
}

type chatNotifier struct {
	sender ChatSender
	logg   *logger.Logger
}

// NewChatNotifier adapts the chat platform client into the Notifier contract.
func NewChatNotifier(sender ChatSender, logg *logger.Logger) Notifier {
	return &chatNotifier{sender: sender, logg: logg}
}

func (n *chatNotifier) SendToUser(ctx context.Context, userID, content string) error {
	return n.sender.SendToUser(ctx, userID, content)
}

func (n *chatNotifier) SendToChannel(ctx context.Context, channelID, content string) error {
	return n.sender.SendToChannel(ctx, channelID, content)
}

func (n *chatNotifier) SendToStaffLog(ctx context.Context, store *models.Store, content string) {
	if store == nil || store.StaffChannelID == "" {
		if n.logg != nil {
			n.logg.Warn(ctx, "staff log channel not configured; dropping staff notification")
		}
		return
	}
	if err := n.sender.SendToChannel(ctx, store.StaffChannelID, content); err != nil && n.logg != nil {
		logCtx := n.logg.WithField(ctx, "store_id", store.ID.String())
		n.logg.Error(logCtx, "failed to post staff log message", err)
	}
}
