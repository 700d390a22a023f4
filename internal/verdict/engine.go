package verdict

import (
	"math"
	"time"

	"github.com/dokubo/veriseal/internal/fields"
	"github.com/dokubo/veriseal/internal/match"
)

// defaultWeights favor the least ambiguous fields: a wrong amount or ref
// is strong evidence no matter how plausible the merchant name looks.
var defaultWeights = map[string]float64{
	fields.FieldAmount:          0.30,
	fields.FieldTransactionRef:  0.25,
	fields.FieldMerchant:        0.15,
	fields.FieldTimestamp:       0.10,
	fields.FieldTaxAmount:       0.08,
	fields.FieldSenderAccount:   0.03,
	fields.FieldSenderName:      0.02,
	fields.FieldSenderBank:      0.02,
	fields.FieldReceiverAccount: 0.03,
	fields.FieldReceiverName:    0.01,
	fields.FieldReceiverBank:    0.01,
}

// disqualifying fields force REJECT when both sources carry a value and
// they contradict each other, regardless of the overall score.
var defaultDisqualifying = map[string]bool{
	fields.FieldAmount:         true,
	fields.FieldTransactionRef: true,
}

// Engine applies the verdict policy to comparison evidence.
type Engine struct {
	weights         map[string]float64
	disqualifying   map[string]bool
	acceptThreshold float64
	rejectThreshold float64
	lowConfidence   float64
}

// NewEngine creates a verdict engine with the default policy.
func NewEngine() *Engine {
	return &Engine{
		weights:         defaultWeights,
		disqualifying:   defaultDisqualifying,
		acceptThreshold: DefaultAcceptThreshold,
		rejectThreshold: DefaultRejectThreshold,
		lowConfidence:   DefaultLowConfidence,
	}
}

// WithThresholds overrides the accept (high) and reject (low) score bounds.
func (e *Engine) WithThresholds(accept, reject float64) *Engine {
	e.acceptThreshold = accept
	e.rejectThreshold = reject
	return e
}

// WithWeights overrides the per-field score weights.
func (e *Engine) WithWeights(w map[string]float64) *Engine {
	e.weights = w
	return e
}

// Decide computes the overall score and applies the verdict policy:
//
//  1. a disqualifying field with both sides present and out of tolerance
//     rejects outright;
//  2. score at or above the accept threshold (with no disqualifier) accepts;
//  3. the band between the thresholds, or any mismatch driven by
//     low-confidence OCR, is suspicious;
//  4. everything below rejects.
func (e *Engine) Decide(submissionID string, comparisons []match.FieldComparison) *Result {
	result := &Result{
		SubmissionID: submissionID,
		Score:        e.score(comparisons),
		Comparisons:  comparisons,
		DecidedAt:    time.Now().UTC(),
	}

	disqualified := false
	shakyMismatch := false
	for _, fc := range comparisons {
		if fc.WithinTolerance {
			continue
		}
		if e.disqualifying[fc.Field] && fc.OCRPresent && fc.QRPresent {
			disqualified = true
		}
		if fc.OCRPresent && fc.OCRConfidence < e.lowConfidence {
			shakyMismatch = true
		}
	}

	switch {
	case disqualified:
		result.Verdict = VerdictReject
	case result.Score >= e.acceptThreshold:
		result.Verdict = VerdictAccept
	case result.Score >= e.rejectThreshold || shakyMismatch:
		result.Verdict = VerdictSuspicious
	default:
		result.Verdict = VerdictReject
	}
	return result
}

// score is the weighted average of per-field similarity over the fields
// that were actually compared. Unknown field names weigh 0.01 so an
// unweighted extra comparison cannot swing the result.
func (e *Engine) score(comparisons []match.FieldComparison) float64 {
	var weighted, total float64
	for _, fc := range comparisons {
		w, ok := e.weights[fc.Field]
		if !ok {
			w = 0.01
		}
		weighted += fc.Similarity * w
		total += w
	}
	if total == 0 {
		return 0
	}
	return math.Round(weighted/total*1000) / 1000
}
