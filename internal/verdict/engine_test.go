package verdict

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dokubo/veriseal/internal/fields"
	"github.com/dokubo/veriseal/internal/match"
)

func comparison(field string, sim float64, within bool) match.FieldComparison {
	return match.FieldComparison{
		Field:           field,
		OCRPresent:      true,
		QRPresent:       true,
		Similarity:      sim,
		WithinTolerance: within,
		OCRConfidence:   0.95,
	}
}

func TestDecideAccept(t *testing.T) {
	e := NewEngine()

	result := e.Decide("sub_1", []match.FieldComparison{
		comparison(fields.FieldAmount, 1.0, true),
		comparison(fields.FieldMerchant, 1.0, true),
		comparison(fields.FieldTransactionRef, 1.0, true),
		comparison(fields.FieldTimestamp, 1.0, true),
	})

	assert.Equal(t, VerdictAccept, result.Verdict)
	assert.Equal(t, 1.0, result.Score)
	assert.False(t, result.Rejected())
	assert.Equal(t, "sub_1", result.SubmissionID)
	assert.False(t, result.DecidedAt.IsZero())
}

func TestDecideAmountMismatchRejects(t *testing.T) {
	e := NewEngine()

	// Everything matches except the amount: disqualified outright even
	// though the weighted score is still high.
	result := e.Decide("sub_1", []match.FieldComparison{
		comparison(fields.FieldAmount, 0.0, false),
		comparison(fields.FieldMerchant, 1.0, true),
		comparison(fields.FieldTransactionRef, 1.0, true),
		comparison(fields.FieldTimestamp, 1.0, true),
	})

	assert.Equal(t, VerdictReject, result.Verdict)
	assert.True(t, result.Rejected())
}

func TestDecideRefMismatchRejects(t *testing.T) {
	e := NewEngine()

	result := e.Decide("sub_1", []match.FieldComparison{
		comparison(fields.FieldAmount, 1.0, true),
		comparison(fields.FieldMerchant, 1.0, true),
		comparison(fields.FieldTransactionRef, 0.0, false),
	})

	assert.Equal(t, VerdictReject, result.Verdict)
}

func TestDecideOneSidedDisqualifierDoesNotReject(t *testing.T) {
	e := NewEngine()

	// Amount present only on the QR side: not a contradiction, so no
	// disqualification. The score still drags the verdict down.
	oneSided := match.FieldComparison{
		Field:      fields.FieldAmount,
		OCRPresent: false,
		QRPresent:  true,
	}
	result := e.Decide("sub_1", []match.FieldComparison{
		oneSided,
		comparison(fields.FieldMerchant, 1.0, true),
		comparison(fields.FieldTimestamp, 1.0, true),
	})

	assert.NotEqual(t, VerdictAccept, result.Verdict)
	assert.NotEqual(t, 0.0, result.Score)
}

func TestDecideSuspiciousBand(t *testing.T) {
	e := NewEngine()

	// Merchant and timestamp both partially off: score lands between
	// the thresholds.
	result := e.Decide("sub_1", []match.FieldComparison{
		comparison(fields.FieldMerchant, 0.7, false),
		comparison(fields.FieldTimestamp, 0.7, false),
	})

	assert.Equal(t, VerdictSuspicious, result.Verdict)
	assert.True(t, result.Rejected(), "suspicious results feed the trend index")
}

func TestDecideShakyOCRSoftensMismatch(t *testing.T) {
	e := NewEngine()

	// A low-confidence OCR merchant that mismatches would reject on
	// score alone, but shaky recognition caps it at suspicious.
	shaky := match.FieldComparison{
		Field:           fields.FieldMerchant,
		OCRPresent:      true,
		QRPresent:       true,
		Similarity:      0.1,
		WithinTolerance: false,
		OCRConfidence:   0.30,
	}
	result := e.Decide("sub_1", []match.FieldComparison{shaky})

	assert.Equal(t, VerdictSuspicious, result.Verdict)
}

func TestDecideLowScoreRejects(t *testing.T) {
	e := NewEngine()

	result := e.Decide("sub_1", []match.FieldComparison{
		comparison(fields.FieldMerchant, 0.2, false),
		comparison(fields.FieldTimestamp, 0.0, false),
	})

	assert.Equal(t, VerdictReject, result.Verdict)
}

func TestDecideEmptyComparisons(t *testing.T) {
	e := NewEngine()

	result := e.Decide("sub_1", nil)

	assert.Equal(t, 0.0, result.Score)
	assert.Equal(t, VerdictReject, result.Verdict)
}

func TestDecideCustomThresholds(t *testing.T) {
	e := NewEngine().WithThresholds(0.95, 0.90)

	result := e.Decide("sub_1", []match.FieldComparison{
		comparison(fields.FieldAmount, 1.0, true),
		comparison(fields.FieldMerchant, 0.86, true),
	})

	// Score ~0.953 passes the stricter accept threshold only barely;
	// verify both directions around it.
	assert.Equal(t, VerdictAccept, result.Verdict)

	stricter := NewEngine().WithThresholds(0.99, 0.90)
	result = stricter.Decide("sub_1", []match.FieldComparison{
		comparison(fields.FieldAmount, 1.0, true),
		comparison(fields.FieldMerchant, 0.86, true),
	})
	assert.Equal(t, VerdictSuspicious, result.Verdict)
}

func TestScoreWeighting(t *testing.T) {
	e := NewEngine()

	// Amount (0.30) matching vs merchant (0.15) mismatching: amount
	// dominates.
	high := e.Decide("sub_1", []match.FieldComparison{
		comparison(fields.FieldAmount, 1.0, true),
		comparison(fields.FieldMerchant, 0.0, false),
	})
	low := e.Decide("sub_2", []match.FieldComparison{
		comparison(fields.FieldAmount, 0.0, false),
		comparison(fields.FieldMerchant, 1.0, true),
	})

	assert.Greater(t, high.Score, low.Score)
}

func TestScoreUnknownFieldBarelyCounts(t *testing.T) {
	e := NewEngine()

	base := e.Decide("sub_1", []match.FieldComparison{
		comparison(fields.FieldAmount, 1.0, true),
	})
	withExtra := e.Decide("sub_2", []match.FieldComparison{
		comparison(fields.FieldAmount, 1.0, true),
		comparison("someFutureField", 0.0, false),
	})

	assert.InDelta(t, base.Score, withExtra.Score, 0.05)
}
