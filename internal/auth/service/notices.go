package service

import (
	"context"
	"time"

	"github.com/aussiebroadwan/starterkit/internal/auth/domain"
	"github.com/aussiebroadwan/starterkit/internal/auth/notify"
	"github.com/aussiebroadwan/starterkit/pkg/slogx"
)

// Notices sends security notices. Delivery failures are logged and never
// fail the operation that triggered them.
type Notices struct {
	Notifier notify.Notifier
	App      string
}

func (n *Notices) send(ctx context.Context, kind string, u domain.User, remaining int) {
	if n == nil || n.Notifier == nil {
		return
	}

	msg, ok := notify.Render(kind, u.Email, notify.NoticeData{
		App:       n.App,
		Name:      u.Name,
		At:        time.Now(),
		Remaining: remaining,
	})
	if !ok {
		slogx.FromContext(ctx).Error("unknown notice kind", "kind", kind)
		return
	}

	if err := n.Notifier.Notify(ctx, msg); err != nil {
		slogx.FromContext(ctx).Warn("failed to send notice", "kind", kind, "user_id", u.ID, "err", err)
	}
}
