package match

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dokubo/veriseal/internal/fields"
)

func money(v string) *fields.Money {
	return &fields.Money{Value: decimal.RequireFromString(v), Currency: "NGN", Confidence: 0.95}
}

func text(v string) *fields.Text {
	return &fields.Text{Value: v, Confidence: 0.95}
}

func findComparison(t *testing.T, comps []FieldComparison, field string) FieldComparison {
	t.Helper()
	for _, c := range comps {
		if c.Field == field {
			return c
		}
	}
	t.Fatalf("No comparison for field %s", field)
	return FieldComparison{}
}

func TestCompareMatchingPair(t *testing.T) {
	m := NewMatcher(Config{})

	ocr := fields.New(fields.ProvenanceOCR)
	ocr.Amount = money("4500.00")
	ocr.Merchant = text("CAFE LUNA INC")
	ocr.TransactionRef = text("TXN-00123")

	qr := fields.New(fields.ProvenanceQR)
	qr.Amount = fields.QRMoney(decimal.RequireFromString("4500.00"), "NGN")
	qr.Merchant = fields.QRText("Cafe Luna")
	qr.TransactionRef = fields.QRText("TXN-00123")

	comps := m.Compare(ocr, qr)
	require.Len(t, comps, 3)

	for _, c := range comps {
		assert.True(t, c.WithinTolerance, "field %s: similarity %f", c.Field, c.Similarity)
		assert.Equal(t, 1.0, c.Similarity, "field %s", c.Field)
	}

	// Suffix stripping makes the merchant pair identical.
	merchant := findComparison(t, comps, fields.FieldMerchant)
	assert.Equal(t, "CAFE LUNA INC", merchant.OCRValue)
	assert.Equal(t, "Cafe Luna", merchant.QRValue)
}

func TestCompareAmountTolerance(t *testing.T) {
	m := NewMatcher(Config{})

	tests := []struct {
		name       string
		ocr, qr    string
		within     bool
		minSim     float64
		maxSim     float64
	}{
		{"exact", "4500.00", "4500.00", true, 1.0, 1.0},
		{"within 1 percent", "4540.00", "4500.00", true, 1.0, 1.0},
		{"small absolute drift", "1.02", "1.00", true, 1.0, 1.0},
		{"off by ten percent", "4950.00", "4500.00", false, 0.85, 0.95},
		{"different transaction", "9999.00", "4500.00", false, 0, 0.1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ocr := fields.New(fields.ProvenanceOCR)
			ocr.Amount = money(tt.ocr)
			qr := fields.New(fields.ProvenanceQR)
			qr.Amount = fields.QRMoney(decimal.RequireFromString(tt.qr), "NGN")

			c := findComparison(t, m.Compare(ocr, qr), fields.FieldAmount)
			assert.Equal(t, tt.within, c.WithinTolerance)
			assert.GreaterOrEqual(t, c.Similarity, tt.minSim)
			assert.LessOrEqual(t, c.Similarity, tt.maxSim)
		})
	}
}

func TestCompareTimestampSkew(t *testing.T) {
	m := NewMatcher(Config{TimestampSkew: 5 * time.Minute})
	base := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)

	tests := []struct {
		name   string
		offset time.Duration
		within bool
	}{
		{"exact", 0, true},
		{"inside window", 4 * time.Minute, true},
		{"edge of window", 5 * time.Minute, true},
		{"outside window", 8 * time.Minute, false},
		{"ocr behind qr", -3 * time.Minute, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ocr := fields.New(fields.ProvenanceOCR)
			ocr.Timestamp = &fields.Instant{Value: base.Add(tt.offset), Confidence: 0.8}
			qr := fields.New(fields.ProvenanceQR)
			qr.Timestamp = fields.QRInstant(base)

			c := findComparison(t, m.Compare(ocr, qr), fields.FieldTimestamp)
			assert.Equal(t, tt.within, c.WithinTolerance, "offset %v", tt.offset)
		})
	}
}

func TestCompareOneSidedFields(t *testing.T) {
	m := NewMatcher(Config{})

	ocr := fields.New(fields.ProvenanceOCR)
	ocr.Amount = money("4500.00")

	qr := fields.New(fields.ProvenanceQR)
	qr.Amount = fields.QRMoney(decimal.RequireFromString("4500.00"), "NGN")
	qr.Merchant = fields.QRText("Cafe Luna")

	comps := m.Compare(ocr, qr)

	// Merchant present only on the QR side: flagged as one-sided.
	merchant := findComparison(t, comps, fields.FieldMerchant)
	assert.False(t, merchant.OCRPresent)
	assert.True(t, merchant.QRPresent)
	assert.False(t, merchant.WithinTolerance)
	assert.Equal(t, 0.0, merchant.Similarity)
}

func TestCompareOCROptionalFieldsExcluded(t *testing.T) {
	m := NewMatcher(Config{})

	ocr := fields.New(fields.ProvenanceOCR)
	ocr.Amount = money("4500.00")

	qr := fields.New(fields.ProvenanceQR)
	qr.Amount = fields.QRMoney(decimal.RequireFromString("4500.00"), "NGN")
	qr.TransactionRef = fields.QRText("TXN-00123")
	qr.SenderAccount = fields.QRText("0123456789")
	qr.ReceiverBank = fields.QRText("Zenith")

	comps := m.Compare(ocr, qr)

	// Ref and party fields the OCR could not recover are excluded
	// entirely, not scored as mismatches.
	require.Len(t, comps, 1)
	assert.Equal(t, fields.FieldAmount, comps[0].Field)
}

func TestComparePartyFields(t *testing.T) {
	m := NewMatcher(Config{})

	ocr := fields.New(fields.ProvenanceOCR)
	ocr.SenderAccount = text("0123456789")
	ocr.SenderName = text("ADA OBI")

	qr := fields.New(fields.ProvenanceQR)
	qr.SenderAccount = fields.QRText("0123456789")
	qr.SenderName = fields.QRText("Ada Obi")

	comps := m.Compare(ocr, qr)
	require.Len(t, comps, 2)

	acct := findComparison(t, comps, fields.FieldSenderAccount)
	assert.True(t, acct.WithinTolerance)

	name := findComparison(t, comps, fields.FieldSenderName)
	assert.True(t, name.WithinTolerance, "names are fuzzy-matched after case folding")
}

func TestCompareRefExactOnly(t *testing.T) {
	m := NewMatcher(Config{})

	ocr := fields.New(fields.ProvenanceOCR)
	ocr.TransactionRef = text("TXN-00124")
	qr := fields.New(fields.ProvenanceQR)
	qr.TransactionRef = fields.QRText("TXN-00123")

	c := findComparison(t, m.Compare(ocr, qr), fields.FieldTransactionRef)
	assert.False(t, c.WithinTolerance, "near-miss refs must not match")
	assert.Equal(t, 0.0, c.Similarity)
}

func TestCompareEmptySets(t *testing.T) {
	m := NewMatcher(Config{})
	comps := m.Compare(fields.New(fields.ProvenanceOCR), fields.New(fields.ProvenanceQR))
	assert.Empty(t, comps)
}

func TestNameSimilarity(t *testing.T) {
	tests := []struct {
		a, b string
		min  float64
		max  float64
	}{
		{"CAFE LUNA INC", "Cafe Luna", 1.0, 1.0},
		{"Mama  Cass  Kitchen", "mama cass kitchen", 1.0, 1.0},
		{"Chicken Republic Ltd", "Chicken Republik", 0.85, 0.99},
		{"Cafe Luna", "Iya Basira Foods", 0, 0.4},
		{"", "anything", 0, 0},
	}
	for _, tt := range tests {
		sim := NameSimilarity(tt.a, tt.b)
		assert.GreaterOrEqual(t, sim, tt.min, "%q vs %q", tt.a, tt.b)
		assert.LessOrEqual(t, sim, tt.max, "%q vs %q", tt.a, tt.b)
	}
}

func TestNormalizeMerchant(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"CAFE LUNA INC", "cafe luna"},
		{"Cafe Luna Ltd.", "cafe luna"},
		{"Dangote Nigeria Limited", "dangote"},
		{"Ltd", "ltd"}, // a lone suffix token is kept, never emptied
		{"  spaced   out  ", "spaced out"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeMerchant(tt.in), "in %q", tt.in)
	}
}
