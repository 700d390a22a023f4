// Package submission persists the append-only log of verification
// requests and their results. Submissions are immutable after ingestion
// and retained for fraud-trend analysis.
package submission

import (
	"context"
	"errors"
	"time"

	"github.com/dokubo/veriseal/internal/verdict"
)

var (
	ErrSubmissionNotFound = errors.New("submission: not found")
	ErrResultNotFound     = errors.New("submission: result not found")
)

// Submission is one verification request as received at ingestion.
type Submission struct {
	ID              string    `json:"id"`
	AccountOwnerRef string    `json:"accountOwnerRef"`
	RawOCRText      string    `json:"-"`
	RawQRPayload    []byte    `json:"-"`
	CapturedAt      time.Time `json:"capturedAt"`
	DeviceID        string    `json:"deviceId,omitempty"`
	SessionID       string    `json:"sessionId,omitempty"`
	ReceivedAt      time.Time `json:"receivedAt"`
}

// Store persists submissions and their verification results.
type Store interface {
	Create(ctx context.Context, sub *Submission) error
	Get(ctx context.Context, id string) (*Submission, error)
	CreateResult(ctx context.Context, result *verdict.Result) error
	GetResult(ctx context.Context, submissionID string) (*verdict.Result, error)
	// ListResultsByOwner returns results newest-first. A non-zero before
	// bound restricts the page to results decided strictly earlier,
	// which is how cursor pagination walks the history.
	ListResultsByOwner(ctx context.Context, ownerRef string, before time.Time, limit int) ([]*verdict.Result, error)
}
