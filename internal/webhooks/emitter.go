package webhooks

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dokubo/veriseal/internal/idgen"
	"github.com/dokubo/veriseal/internal/trend"
	"github.com/dokubo/veriseal/internal/verdict"
)

var (
	webhookEmitTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "veriseal",
		Subsystem: "webhook",
		Name:      "emit_total",
		Help:      "Total webhook emit attempts by event type.",
	}, []string{"event_type"})

	webhookEmitErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "veriseal",
		Subsystem: "webhook",
		Name:      "emit_errors_total",
		Help:      "Total webhook emit failures by event type.",
	}, []string{"event_type"})
)

func init() {
	prometheus.MustRegister(webhookEmitTotal, webhookEmitErrors)
}

// Emitter wraps a Dispatcher to emit domain events. All methods are
// fire-and-forget: errors are logged but never returned.
type Emitter struct {
	d      *Dispatcher
	logger *slog.Logger
}

// NewEmitter creates a new webhook emitter.
func NewEmitter(d *Dispatcher, logger *slog.Logger) *Emitter {
	return &Emitter{d: d, logger: logger}
}

// EmitVerdict emits a verification.decided event to the account owner's
// subscriptions.
func (e *Emitter) EmitVerdict(ownerRef string, result *verdict.Result) {
	if e == nil || e.d == nil {
		return
	}
	webhookEmitTotal.WithLabelValues(string(EventVerificationDecided)).Inc()
	event := &Event{
		ID:        idgen.WithPrefix("evt_"),
		Type:      EventVerificationDecided,
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"submissionId": result.SubmissionID,
			"ownerRef":     ownerRef,
			"verdict":      string(result.Verdict),
			"score":        result.Score,
		},
	}
	// Dispatch only looks up subscriptions; deliveries detach and carry
	// their own timeout, so cancelling here would kill them mid-flight.
	if err := e.d.DispatchToOwner(context.Background(), ownerRef, event); err != nil {
		webhookEmitErrors.WithLabelValues(string(EventVerificationDecided)).Inc()
		e.logger.Warn("webhook emit failed", "event", EventVerificationDecided, "owner", ownerRef, "error", err)
	}
}

// Notify emits a trend.warning event to every subscriber of the type.
// Trend warnings are not owner-scoped: the pattern spans accounts.
func (e *Emitter) Notify(_ context.Context, warning *trend.WarningEvent) {
	if e == nil || e.d == nil {
		return
	}
	webhookEmitTotal.WithLabelValues(string(EventTrendWarning)).Inc()
	event := &Event{
		ID:        idgen.WithPrefix("evt_"),
		Type:      EventTrendWarning,
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"fingerprint":    warning.Fingerprint,
			"merchant":       warning.Attributes.Merchant,
			"refShape":       warning.Attributes.RefShape,
			"count":          warning.Count,
			"distinctOwners": warning.DistinctOwner,
		},
	}
	if err := e.d.Dispatch(context.Background(), event); err != nil {
		webhookEmitErrors.WithLabelValues(string(EventTrendWarning)).Inc()
		e.logger.Warn("webhook emit failed", "event", EventTrendWarning, "fingerprint", warning.Fingerprint, "error", err)
	}
}

var _ trend.Dispatcher = (*Emitter)(nil)
