// Package trend maintains the scam-signature index: a concurrent,
// persistent tally of rejected-submission fingerprints used to detect
// recurring fraud patterns across account owners.
package trend

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/dokubo/veriseal/internal/fields"
	"github.com/dokubo/veriseal/internal/match"
)

var (
	ErrSignatureNotFound = errors.New("trend: signature not found")
	// ErrIndexUnavailable wraps storage failures so callers can degrade
	// without inspecting driver errors.
	ErrIndexUnavailable = errors.New("trend: index unavailable")
)

// Signature is the stable attribute set extracted from a rejected
// submission. Two rejections with the same signature are treated as the
// same scam pattern regardless of which account owner submitted them.
type Signature struct {
	Merchant  string `json:"merchant,omitempty"`
	RefShape  string `json:"refShape,omitempty"`
	PayerHint string `json:"payerHint,omitempty"`
}

// Empty reports whether nothing usable was extracted.
func (s Signature) Empty() bool {
	return s.Merchant == "" && s.RefShape == "" && s.PayerHint == ""
}

// Fingerprint returns the stable hex digest keying this signature in the
// index. Attribute order is fixed, so equal signatures always collide.
func (s Signature) Fingerprint() string {
	h := sha256.New()
	h.Write([]byte("m=" + s.Merchant + "\x00r=" + s.RefShape + "\x00p=" + s.PayerHint))
	return hex.EncodeToString(h.Sum(nil))
}

// FromFields derives a signature from whichever source carried the richer
// view of the rejected claim. QR fields win when present since they are
// exact; OCR fields fill the gaps.
func FromFields(ocr, qr *fields.TypedFields) Signature {
	var sig Signature

	if m := pickText(qr.Merchant, ocr.Merchant); m != "" {
		sig.Merchant = match.NormalizeMerchant(m)
	}
	if ref := pickText(qr.TransactionRef, ocr.TransactionRef); ref != "" {
		sig.RefShape = RefShape(ref)
	}
	if acct := pickText(qr.SenderAccount, ocr.SenderAccount); acct != "" {
		sig.PayerHint = acct
	}
	return sig
}

// RefShape collapses digit runs to '#' so references that differ only in
// serial numbers (TXN-00123, TXN-00456) share one shape.
func RefShape(ref string) string {
	var b strings.Builder
	inDigits := false
	for _, r := range strings.ToUpper(strings.TrimSpace(ref)) {
		if r >= '0' && r <= '9' {
			if !inDigits {
				b.WriteByte('#')
				inDigits = true
			}
			continue
		}
		inDigits = false
		b.WriteRune(r)
	}
	return b.String()
}

func pickText(primary, fallback *fields.Text) string {
	if primary != nil && strings.TrimSpace(primary.Value) != "" {
		return primary.Value
	}
	if fallback != nil {
		return fallback.Value
	}
	return ""
}

// Occurrence is one rejected submission attributed to a signature.
type Occurrence struct {
	Owner        string    `json:"owner"`
	SubmissionID string    `json:"submissionId"`
	At           time.Time `json:"at"`
}

// SignatureRecord is the indexed state of one scam signature.
type SignatureRecord struct {
	Fingerprint string       `json:"fingerprint"`
	Attributes  Signature    `json:"attributes"`
	Count       int          `json:"count"`
	FirstSeen   time.Time    `json:"firstSeen"`
	LastSeen    time.Time    `json:"lastSeen"`
	Warned      bool         `json:"warned"`
	Occurrences []Occurrence `json:"occurrences,omitempty"`
}

// DistinctOwners counts unique account owners across the retained
// occurrences.
func (r *SignatureRecord) DistinctOwners() int {
	seen := make(map[string]struct{}, len(r.Occurrences))
	for _, o := range r.Occurrences {
		seen[o.Owner] = struct{}{}
	}
	return len(seen)
}

// Store persists signature records. Update applies fn to the record for
// fingerprint (creating it if absent) under a per-fingerprint lock so
// concurrent recordings of the same signature serialize.
type Store interface {
	Update(ctx context.Context, fingerprint string, attrs Signature, fn func(*SignatureRecord) error) (*SignatureRecord, error)
	Get(ctx context.Context, fingerprint string) (*SignatureRecord, error)
	List(ctx context.Context, limit int) ([]*SignatureRecord, error)
}
