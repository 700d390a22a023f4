// Package match compares the OCR-derived and QR-derived field sets of one
// submission, field by field, under per-field tolerance rules.
//
// The matcher only scores: every present field becomes a FieldComparison
// with a similarity in [0,1] and a tolerance flag. Turning comparisons into
// a verdict is the verdict engine's job.
package match

import (
	"strings"
	"time"

	"github.com/agnivade/levenshtein"
	"github.com/shopspring/decimal"

	"github.com/dokubo/veriseal/internal/fields"
)

// FieldComparison is the evidence for one field across both sources.
type FieldComparison struct {
	Field           string  `json:"field"`
	OCRValue        string  `json:"ocrValue,omitempty"`
	QRValue         string  `json:"qrValue,omitempty"`
	OCRPresent      bool    `json:"ocrPresent"`
	QRPresent       bool    `json:"qrPresent"`
	Similarity      float64 `json:"similarity"`
	WithinTolerance bool    `json:"withinTolerance"`
	// OCRConfidence is the recognition confidence of the OCR side, 0 when
	// the OCR side is absent. The verdict engine uses it to soften
	// mismatches driven by shaky recognition.
	OCRConfidence float64 `json:"ocrConfidence"`
}

// Config holds the tolerance knobs. Zero values are replaced by defaults;
// none of these are product constants, they are deployment policy.
type Config struct {
	// AmountRelTolerance is the allowed relative difference against the
	// QR amount (QR is authoritative when present).
	AmountRelTolerance decimal.Decimal
	// AmountAbsEpsilon is the allowed absolute difference for very small
	// amounts, where a relative bound is tighter than OCR can deliver.
	AmountAbsEpsilon decimal.Decimal
	// MerchantSimilarity is the minimum edit-distance ratio for merchant
	// names to count as matching.
	MerchantSimilarity float64
	// TimestampSkew is the allowed clock difference between sources.
	TimestampSkew time.Duration
}

// DefaultConfig returns the stock tolerance policy.
func DefaultConfig() Config {
	return Config{
		AmountRelTolerance: decimal.NewFromFloat(0.01),
		AmountAbsEpsilon:   decimal.NewFromFloat(0.05),
		MerchantSimilarity: 0.85,
		TimestampSkew:      5 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.AmountRelTolerance.IsZero() {
		c.AmountRelTolerance = d.AmountRelTolerance
	}
	if c.AmountAbsEpsilon.IsZero() {
		c.AmountAbsEpsilon = d.AmountAbsEpsilon
	}
	if c.MerchantSimilarity == 0 {
		c.MerchantSimilarity = d.MerchantSimilarity
	}
	if c.TimestampSkew == 0 {
		c.TimestampSkew = d.TimestampSkew
	}
	return c
}

// Matcher applies the policy table to a pair of field sets.
type Matcher struct {
	cfg      Config
	policies []fieldPolicy
}

// fieldPolicy binds one canonical field name to its extraction and scoring
// functions. ocrOptional marks QR-only metadata that must not drag the
// score down when OCR cannot recover it.
type fieldPolicy struct {
	name        string
	ocrOptional bool
	view        func(*fields.TypedFields) (value string, confidence float64, present bool)
	score       func(m *Matcher, ocr, qr *fields.TypedFields) (similarity float64, within bool)
}

// NewMatcher creates a matcher with the given tolerance config.
func NewMatcher(cfg Config) *Matcher {
	m := &Matcher{cfg: cfg.withDefaults()}
	m.policies = []fieldPolicy{
		{
			name: fields.FieldAmount,
			view: moneyView(func(tf *fields.TypedFields) *fields.Money { return tf.Amount }),
			score: func(m *Matcher, ocr, qr *fields.TypedFields) (float64, bool) {
				return m.amountScore(ocr.Amount.Value, qr.Amount.Value)
			},
		},
		{
			name: fields.FieldTaxAmount,
			view: moneyView(func(tf *fields.TypedFields) *fields.Money { return tf.TaxAmount }),
			score: func(m *Matcher, ocr, qr *fields.TypedFields) (float64, bool) {
				return m.amountScore(ocr.TaxAmount.Value, qr.TaxAmount.Value)
			},
		},
		{
			name: fields.FieldMerchant,
			view: textView(func(tf *fields.TypedFields) *fields.Text { return tf.Merchant }),
			score: func(m *Matcher, ocr, qr *fields.TypedFields) (float64, bool) {
				sim := NameSimilarity(ocr.Merchant.Value, qr.Merchant.Value)
				return sim, sim >= m.cfg.MerchantSimilarity
			},
		},
		{
			// Refs are printed verbatim; when both sides carry one, only an
			// exact match counts. An OCR-absent ref is excluded, not penalized.
			name:        fields.FieldTransactionRef,
			ocrOptional: true,
			view:        textView(func(tf *fields.TypedFields) *fields.Text { return tf.TransactionRef }),
			score: func(m *Matcher, ocr, qr *fields.TypedFields) (float64, bool) {
				return exactScore(ocr.TransactionRef.Value, qr.TransactionRef.Value)
			},
		},
		{
			name: fields.FieldTimestamp,
			view: func(tf *fields.TypedFields) (string, float64, bool) {
				if tf.Timestamp == nil {
					return "", 0, false
				}
				return tf.Timestamp.Value.Format(time.RFC3339), tf.Timestamp.Confidence, true
			},
			score: func(m *Matcher, ocr, qr *fields.TypedFields) (float64, bool) {
				return m.timestampScore(ocr.Timestamp.Value, qr.Timestamp.Value)
			},
		},
		partyPolicy(fields.FieldSenderAccount, func(tf *fields.TypedFields) *fields.Text { return tf.SenderAccount }),
		partyPolicy(fields.FieldSenderName, func(tf *fields.TypedFields) *fields.Text { return tf.SenderName }),
		partyPolicy(fields.FieldSenderBank, func(tf *fields.TypedFields) *fields.Text { return tf.SenderBank }),
		partyPolicy(fields.FieldReceiverAccount, func(tf *fields.TypedFields) *fields.Text { return tf.ReceiverAccount }),
		partyPolicy(fields.FieldReceiverName, func(tf *fields.TypedFields) *fields.Text { return tf.ReceiverName }),
		partyPolicy(fields.FieldReceiverBank, func(tf *fields.TypedFields) *fields.Text { return tf.ReceiverBank }),
	}
	return m
}

// partyPolicy builds the policy for seal party fields: names are fuzzy,
// account numbers and bank codes are exact, and all of them are QR-only
// metadata that OCR is not expected to recover.
func partyPolicy(name string, get func(*fields.TypedFields) *fields.Text) fieldPolicy {
	fuzzy := name == fields.FieldSenderName || name == fields.FieldReceiverName
	return fieldPolicy{
		name:        name,
		ocrOptional: true,
		view:        textView(get),
		score: func(m *Matcher, ocr, qr *fields.TypedFields) (float64, bool) {
			a, b := get(ocr).Value, get(qr).Value
			if fuzzy {
				sim := NameSimilarity(a, b)
				return sim, sim >= m.cfg.MerchantSimilarity
			}
			return exactScore(a, b)
		},
	}
}

// Compare produces one FieldComparison per field present in either set, in
// fixed policy order. Fields absent from both sides are excluded, as are
// OCR-optional fields present only on the QR side.
func (m *Matcher) Compare(ocr, qr *fields.TypedFields) []FieldComparison {
	var out []FieldComparison
	for _, p := range m.policies {
		ocrVal, ocrConf, ocrPresent := p.view(ocr)
		qrVal, _, qrPresent := p.view(qr)

		if !ocrPresent && !qrPresent {
			continue
		}
		if p.ocrOptional && !ocrPresent {
			continue
		}

		fc := FieldComparison{
			Field:         p.name,
			OCRValue:      ocrVal,
			QRValue:       qrVal,
			OCRPresent:    ocrPresent,
			QRPresent:     qrPresent,
			OCRConfidence: ocrConf,
		}
		if ocrPresent && qrPresent {
			fc.Similarity, fc.WithinTolerance = p.score(m, ocr, qr)
		}
		// One-sided fields keep similarity 0 and withinTolerance false:
		// the sources disagree about whether the field exists at all.
		out = append(out, fc)
	}
	return out
}

// amountScore grades a numeric pair. Within tolerance the similarity is a
// full 1.0; outside it decays with the relative difference so the verdict
// engine can distinguish "off by a digit" from "different transaction".
func (m *Matcher) amountScore(ocr, qr decimal.Decimal) (float64, bool) {
	diff := ocr.Sub(qr).Abs()

	tol := qr.Abs().Mul(m.cfg.AmountRelTolerance)
	if tol.LessThan(m.cfg.AmountAbsEpsilon) {
		tol = m.cfg.AmountAbsEpsilon
	}
	if diff.LessThanOrEqual(tol) {
		return 1.0, true
	}

	if qr.IsZero() {
		return 0, false
	}
	rel, _ := diff.Div(qr.Abs()).Float64()
	sim := 1.0 - rel
	if sim < 0 {
		sim = 0
	}
	return sim, false
}

// timestampScore allows a clock-skew window; beyond it the similarity
// decays linearly, reaching zero at twice the window.
func (m *Matcher) timestampScore(ocr, qr time.Time) (float64, bool) {
	skew := ocr.Sub(qr)
	if skew < 0 {
		skew = -skew
	}
	if skew <= m.cfg.TimestampSkew {
		return 1.0, true
	}
	over := float64(skew-m.cfg.TimestampSkew) / float64(m.cfg.TimestampSkew)
	sim := 1.0 - over
	if sim < 0 {
		sim = 0
	}
	return sim, false
}

func exactScore(a, b string) (float64, bool) {
	if strings.TrimSpace(a) == strings.TrimSpace(b) {
		return 1.0, true
	}
	return 0, false
}

// corporateSuffixes are legal-form tokens that merchants print on seals
// but rarely on receipt headers ("CAFE LUNA INC" vs "Cafe Luna").
var corporateSuffixes = map[string]bool{
	"inc": true, "incorporated": true, "ltd": true, "limited": true,
	"llc": true, "plc": true, "co": true, "company": true, "gmbh": true,
	"nig": true, "nigeria": true, "enterprises": true, "ventures": true,
}

// NameSimilarity is the edit-distance ratio of two names after
// normalization (case fold, whitespace collapse, legal-suffix strip).
// 1.0 means identical.
func NameSimilarity(a, b string) float64 {
	na, nb := NormalizeMerchant(a), NormalizeMerchant(b)
	if na == nb {
		return 1.0
	}
	longest := len([]rune(na))
	if l := len([]rune(nb)); l > longest {
		longest = l
	}
	if longest == 0 {
		return 0
	}
	dist := levenshtein.ComputeDistance(na, nb)
	sim := 1.0 - float64(dist)/float64(longest)
	if sim < 0 {
		return 0
	}
	return sim
}

// NormalizeName case-folds and collapses whitespace.
func NormalizeName(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// NormalizeMerchant applies NormalizeName and drops trailing corporate
// suffix tokens. Shared with the trend package so signature fingerprints
// agree with match normalization.
func NormalizeMerchant(s string) string {
	tokens := strings.Fields(strings.ToLower(s))
	for len(tokens) > 1 && corporateSuffixes[strings.Trim(tokens[len(tokens)-1], ".,")] {
		tokens = tokens[:len(tokens)-1]
	}
	return strings.Join(tokens, " ")
}

// moneyView and textView adapt field accessors to the policy view shape.

func moneyView(get func(*fields.TypedFields) *fields.Money) func(*fields.TypedFields) (string, float64, bool) {
	return func(tf *fields.TypedFields) (string, float64, bool) {
		f := get(tf)
		if f == nil {
			return "", 0, false
		}
		return f.Value.StringFixed(2) + " " + f.Currency, f.Confidence, true
	}
}

func textView(get func(*fields.TypedFields) *fields.Text) func(*fields.TypedFields) (string, float64, bool) {
	return func(tf *fields.TypedFields) (string, float64, bool) {
		f := get(tf)
		if f == nil {
			return "", 0, false
		}
		return f.Value, f.Confidence, true
	}
}
