// Package qrseal decodes the structured payload embedded in a receipt's
// QR seal: a zlib-compressed, canonically CBOR-encoded [message, signature]
// envelope where the message is a compact-key map and the signature is
// Ed25519 over the message bytes.
//
// The payload is merchant-generated and treated as authoritative when it
// decodes; the parser never guesses at unknown schema versions.
package qrseal

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrUndecodablePayload covers corruption at any layer: zlib, CBOR,
	// or a malformed envelope.
	ErrUndecodablePayload = errors.New("qrseal: undecodable payload")

	// ErrUnsupportedSchema is returned for schema versions this parser
	// does not understand.
	ErrUnsupportedSchema = errors.New("qrseal: unsupported schema version")

	// ErrBadSignature is returned when the envelope decodes but the
	// Ed25519 signature does not verify against the configured key.
	ErrBadSignature = errors.New("qrseal: signature verification failed")
)

// SchemaVersion is the only seal schema this parser accepts.
const SchemaVersion = 1

// DefaultCurrency applies when the payload omits the currency key.
// Amounts on the wire are integers in the currency's minor unit (kobo).
const DefaultCurrency = "NGN"

// Seal is the decoded transaction record carried by the QR payload.
type Seal struct {
	Amount          decimal.Decimal
	Currency        string
	Timestamp       time.Time
	TransactionRef  string
	MerchantID      string
	TaxAmount       *decimal.Decimal
	SenderAccount   string
	SenderName      string
	SenderBank      string
	ReceiverAccount string
	ReceiverName    string
	ReceiverBank    string
}

// compactSeal is the wire form of a Seal. Keys are single characters to
// keep the payload within QR capacity; amounts are minor-unit integers.
// All fields are pointers so a partial payload decodes to absent fields
// rather than zero values.
type compactSeal struct {
	V *uint64 `cbor:"v"`
	X *int64  `cbor:"x"` // amount, minor units
	C *string `cbor:"c,omitempty"`
	T *int64  `cbor:"t"` // unix seconds
	R *string `cbor:"r"`
	M *string `cbor:"m"`
	G *int64  `cbor:"g,omitempty"` // tax, minor units
	S *string `cbor:"s,omitempty"`
	N *string `cbor:"n,omitempty"`
	K *string `cbor:"k,omitempty"`
	D *string `cbor:"d,omitempty"`
	O *string `cbor:"o,omitempty"`
	L *string `cbor:"l,omitempty"`
}

// minorUnits converts a decimal amount to its minor-unit integer
// representation (two decimal places).
func minorUnits(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}

// fromMinorUnits converts a minor-unit integer back to a decimal amount.
func fromMinorUnits(units int64) decimal.Decimal {
	return decimal.New(units, -2)
}
