// Package verdict turns field comparisons into a three-way verification
// verdict. Binary accept/reject is too brittle against OCR noise, so
// ambiguous submissions land in SUSPICIOUS and flow into trend review
// instead of being hard-rejected.
package verdict

import (
	"time"

	"github.com/dokubo/veriseal/internal/match"
)

// Verdict is the outcome of verifying one submission.
type Verdict string

const (
	VerdictAccept     Verdict = "accept"
	VerdictReject     Verdict = "reject"
	VerdictSuspicious Verdict = "suspicious"
)

// Default policy thresholds. Deployment policy, not product constants.
const (
	DefaultAcceptThreshold = 0.85
	DefaultRejectThreshold = 0.60
	// DefaultLowConfidence marks OCR fields whose recognition was too
	// shaky to justify a hard rejection on their mismatch alone.
	DefaultLowConfidence = 0.5
)

// Result is the immutable verification outcome for one submission:
// the verdict, the overall match score, and the per-field evidence that
// produced it.
type Result struct {
	SubmissionID string                  `json:"submissionId"`
	Verdict      Verdict                 `json:"verdict"`
	Score        float64                 `json:"score"`
	Comparisons  []match.FieldComparison `json:"comparisons"`
	DecidedAt    time.Time               `json:"decidedAt"`
}

// Rejected reports whether the result needs trend recording.
func (r *Result) Rejected() bool {
	return r.Verdict != VerdictAccept
}
