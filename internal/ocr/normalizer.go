// Package ocr extracts a typed field set from raw receipt text produced by
// an upstream OCR engine. Extraction is best-effort: labeled patterns score
// high confidence, positional guesses score low, and anything that cannot
// be located is left absent. Partial extraction is never an error.
package ocr

import (
	"errors"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/dokubo/veriseal/internal/fields"
)

// ErrMalformedInput is returned only when the input is not decodable text.
var ErrMalformedInput = errors.New("ocr: input is not valid text")

// Confidence levels assigned by extraction strategy.
const (
	confLabeled    = 0.95 // exact label match with a well-formed token
	confNearLabel  = 0.80 // label present, token loosely formed
	confPositional = 0.30 // inferred by position only
)

var (
	// amountToken matches currency-amount shaped tokens: optional symbol,
	// thousands separators, mandatory two decimal places.
	amountToken = regexp.MustCompile(`(?:₦|NGN|\$|N)?\s*([0-9]{1,3}(?:,[0-9]{3})*\.[0-9]{2})`)

	totalLabel = regexp.MustCompile(`(?i)\b(grand\s+total|total\s+due|amount\s+due|total|amount|paid)\b`)
	taxLabel   = regexp.MustCompile(`(?i)\b(vat|tax|levy)\b`)

	refLabel = regexp.MustCompile(`(?i)\b(?:transaction\s+)?(?:ref(?:erence)?|txn\s*id|trx)\b[:.#\s]*([A-Za-z0-9][A-Za-z0-9/_-]{3,})`)

	merchantLabel = regexp.MustCompile(`(?i)\b(?:merchant|store|paid\s+to|beneficiary)\b[:.\s]+(.+)`)

	accountLabel = regexp.MustCompile(`(?i)\b(?:sender|from)\b.*?\b([0-9]{10})\b`)

	// Date shapes OCR commonly yields: 2006-01-02, 02/01/2006, 02-01-2006,
	// each with an optional HH:MM[:SS] suffix.
	dateToken = regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2}|\d{2}/\d{2}/\d{4}|\d{2}-\d{2}-\d{4})(?:[ T](\d{2}:\d{2}(?::\d{2})?))?\b`)
)

var dateLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"02/01/2006",
	"02-01-2006 15:04",
	"02-01-2006",
}

// Normalizer turns raw OCR text into a TypedFields set.
type Normalizer struct {
	currency string
}

// NewNormalizer creates a normalizer. Extracted amounts are tagged with
// the given currency code since receipts rarely print ISO codes.
func NewNormalizer(currency string) *Normalizer {
	if currency == "" {
		currency = "NGN"
	}
	return &Normalizer{currency: currency}
}

// Normalize extracts whatever transaction fields the text yields. It fails
// only when the input is not valid UTF-8; empty or unrelated text simply
// produces an empty field set.
func (n *Normalizer) Normalize(raw string) (*fields.TypedFields, error) {
	if !utf8.ValidString(raw) {
		return nil, ErrMalformedInput
	}

	tf := fields.New(fields.ProvenanceOCR)
	lines := splitLines(raw)
	if len(lines) == 0 {
		return tf, nil
	}

	n.extractMerchant(tf, lines)
	n.extractAmounts(tf, lines)
	n.extractTimestamp(tf, raw)
	n.extractRef(tf, raw)
	n.extractSender(tf, raw)
	return tf, nil
}

func splitLines(raw string) []string {
	var out []string
	for _, line := range strings.Split(raw, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// extractMerchant prefers an explicit merchant label anywhere in the text;
// otherwise the first line that is not an amount or date is assumed to be
// the merchant header, at positional confidence.
func (n *Normalizer) extractMerchant(tf *fields.TypedFields, lines []string) {
	for _, line := range lines {
		if m := merchantLabel.FindStringSubmatch(line); m != nil {
			tf.Merchant = &fields.Text{Value: strings.TrimSpace(m[1]), Confidence: confLabeled}
			return
		}
	}
	for _, line := range lines {
		if amountToken.MatchString(line) || dateToken.MatchString(line) {
			continue
		}
		tf.Merchant = &fields.Text{Value: line, Confidence: confPositional}
		return
	}
}

// extractAmounts locates the total and tax amounts. A labeled line wins;
// failing that, the largest amount-shaped token in the text is taken as
// the total at positional confidence (receipts print the total largest
// and last, but OCR reorders lines too often to rely on position alone).
func (n *Normalizer) extractAmounts(tf *fields.TypedFields, lines []string) {
	var largest *decimal.Decimal
	for _, line := range lines {
		m := amountToken.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		val, err := decimal.NewFromString(strings.ReplaceAll(m[1], ",", ""))
		if err != nil {
			continue
		}

		switch {
		case totalLabel.MatchString(line) && tf.Amount == nil:
			tf.Amount = &fields.Money{Value: val, Currency: n.currency, Confidence: confLabeled}
		case taxLabel.MatchString(line) && tf.TaxAmount == nil:
			tf.TaxAmount = &fields.Money{Value: val, Currency: n.currency, Confidence: confLabeled}
		}
		if largest == nil || val.GreaterThan(*largest) {
			largest = &val
		}
	}
	if tf.Amount == nil && largest != nil {
		tf.Amount = &fields.Money{Value: *largest, Currency: n.currency, Confidence: confPositional}
	}
}

func (n *Normalizer) extractTimestamp(tf *fields.TypedFields, raw string) {
	m := dateToken.FindStringSubmatch(raw)
	if m == nil {
		return
	}
	token := m[1]
	conf := confNearLabel
	if m[2] != "" {
		token = token + " " + m[2]
	} else {
		// Date without a time is a weaker signal; skew checks need both.
		conf = 0.5
	}
	for _, layout := range dateLayouts {
		if ts, err := time.Parse(layout, token); err == nil {
			tf.Timestamp = &fields.Instant{Value: ts.UTC(), Confidence: conf}
			return
		}
	}
}

func (n *Normalizer) extractRef(tf *fields.TypedFields, raw string) {
	if m := refLabel.FindStringSubmatch(raw); m != nil {
		tf.TransactionRef = &fields.Text{Value: m[1], Confidence: confLabeled}
	}
}

func (n *Normalizer) extractSender(tf *fields.TypedFields, raw string) {
	if m := accountLabel.FindStringSubmatch(raw); m != nil {
		tf.SenderAccount = &fields.Text{Value: m[1], Confidence: confNearLabel}
	}
}
