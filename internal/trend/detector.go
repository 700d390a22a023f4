package trend

import (
	"context"
	"fmt"
	"time"
)

// Recurrence policy defaults. A pattern must hit multiple owners to warn;
// one owner retrying their own bad receipt is not a trend.
const (
	DefaultMinCount          = 3
	DefaultMinDistinctOwners = 2
	DefaultWindow            = 30 * 24 * time.Hour
)

// Policy controls when a signature crosses from "seen" to "warn".
type Policy struct {
	MinCount          int
	MinDistinctOwners int
	Window            time.Duration
}

// DefaultPolicy returns the stock recurrence thresholds.
func DefaultPolicy() Policy {
	return Policy{
		MinCount:          DefaultMinCount,
		MinDistinctOwners: DefaultMinDistinctOwners,
		Window:            DefaultWindow,
	}
}

func (p Policy) withDefaults() Policy {
	if p.MinCount <= 0 {
		p.MinCount = DefaultMinCount
	}
	if p.MinDistinctOwners <= 0 {
		p.MinDistinctOwners = DefaultMinDistinctOwners
	}
	if p.Window <= 0 {
		p.Window = DefaultWindow
	}
	return p
}

// WarningEvent is emitted exactly once per signature, when it first
// satisfies the recurrence policy.
type WarningEvent struct {
	Fingerprint   string    `json:"fingerprint"`
	Attributes    Signature `json:"attributes"`
	Count         int       `json:"count"`
	DistinctOwner int       `json:"distinctOwners"`
	FirstSeen     time.Time `json:"firstSeen"`
	LastSeen      time.Time `json:"lastSeen"`
}

// Dispatcher delivers trend warnings. Implementations must not block the
// verification path; delivery is fire-and-forget.
type Dispatcher interface {
	Notify(ctx context.Context, event *WarningEvent)
}

// Detector records rejected submissions against the signature index and
// decides, under the store's per-fingerprint lock, whether the recurrence
// policy has just been crossed.
type Detector struct {
	store      Store
	policy     Policy
	dispatcher Dispatcher
	now        func() time.Time
}

// NewDetector creates a detector over the given store. dispatcher may be
// nil, in which case warnings are flagged on the record but not delivered.
func NewDetector(store Store, policy Policy, dispatcher Dispatcher) *Detector {
	return &Detector{
		store:      store,
		policy:     policy.withDefaults(),
		dispatcher: dispatcher,
		now:        time.Now,
	}
}

// Record attributes one rejected submission to sig. Every call increments
// the lifetime count and appends an occurrence; double-warning is prevented
// by the record's warned flag, not by deduplicating counts. The returned
// bool is true only on the single call that crossed the warning threshold.
func (d *Detector) Record(ctx context.Context, sig Signature, owner, submissionID string) (*SignatureRecord, bool, error) {
	if sig.Empty() {
		return nil, false, nil
	}

	now := d.now().UTC()
	cutoff := now.Add(-d.policy.Window)
	warned := false

	rec, err := d.store.Update(ctx, sig.Fingerprint(), sig, func(r *SignatureRecord) error {
		if r.FirstSeen.IsZero() {
			r.FirstSeen = now
		}
		r.LastSeen = now
		r.Count++
		r.Occurrences = append(r.Occurrences, Occurrence{
			Owner:        owner,
			SubmissionID: submissionID,
			At:           now,
		})
		r.Occurrences = pruneBefore(r.Occurrences, cutoff)

		if !r.Warned && d.crossed(r, cutoff) {
			r.Warned = true
			warned = true
		}
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}

	if warned && d.dispatcher != nil {
		d.dispatcher.Notify(ctx, &WarningEvent{
			Fingerprint:   rec.Fingerprint,
			Attributes:    rec.Attributes,
			Count:         rec.Count,
			DistinctOwner: rec.DistinctOwners(),
			FirstSeen:     rec.FirstSeen,
			LastSeen:      rec.LastSeen,
		})
	}
	return rec, warned, nil
}

// crossed evaluates the recurrence policy over the rolling window only.
func (d *Detector) crossed(r *SignatureRecord, cutoff time.Time) bool {
	inWindow := 0
	owners := make(map[string]struct{})
	for _, o := range r.Occurrences {
		if o.At.Before(cutoff) {
			continue
		}
		inWindow++
		owners[o.Owner] = struct{}{}
	}
	return inWindow >= d.policy.MinCount && len(owners) >= d.policy.MinDistinctOwners
}

func pruneBefore(occ []Occurrence, cutoff time.Time) []Occurrence {
	kept := occ[:0]
	for _, o := range occ {
		if !o.At.Before(cutoff) {
			kept = append(kept, o)
		}
	}
	return kept
}
