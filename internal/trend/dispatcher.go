package trend

import (
	"context"
	"log/slog"
)

// LogDispatcher emits trend warnings to the structured log. It is the
// fallback when no realtime transport is wired.
type LogDispatcher struct {
	logger *slog.Logger
}

// NewLogDispatcher creates a dispatcher writing to logger.
func NewLogDispatcher(logger *slog.Logger) *LogDispatcher {
	return &LogDispatcher{logger: logger}
}

func (d *LogDispatcher) Notify(ctx context.Context, event *WarningEvent) {
	d.logger.WarnContext(ctx, "recurring scam signature detected",
		"fingerprint", event.Fingerprint,
		"merchant", event.Attributes.Merchant,
		"refShape", event.Attributes.RefShape,
		"count", event.Count,
		"distinctOwners", event.DistinctOwner,
	)
}

// MultiDispatcher fans a warning out to several dispatchers.
type MultiDispatcher []Dispatcher

func (m MultiDispatcher) Notify(ctx context.Context, event *WarningEvent) {
	for _, d := range m {
		d.Notify(ctx, event)
	}
}

var (
	_ Dispatcher = (*LogDispatcher)(nil)
	_ Dispatcher = (MultiDispatcher)(nil)
)
