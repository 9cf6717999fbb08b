package convo

import (
	"context"
	"log/slog"

	"github.com/frontdeskai/switchboard/pkg/types"
)

// LogNotifier is the default [Notifier]: it records captured leads in the
// log, with urgency surfaced at warning level so an on-call filter can page
// on it.
type LogNotifier struct{}

var _ Notifier = LogNotifier{}

// LeadCaptured implements [Notifier].
func (LogNotifier) LeadCaptured(_ context.Context, l types.Lead) {
	level := slog.LevelInfo
	if l.Priority == types.PriorityUrgent {
		level = slog.LevelWarn
	}
	slog.Log(context.Background(), level, "lead captured",
		"lead_id", l.ID,
		"business_id", l.BusinessID,
		"priority", string(l.Priority),
		"contact_name", l.ContactName,
		"contact_phone", l.ContactPhone,
	)
}
