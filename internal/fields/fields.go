// Package fields defines the canonical typed field set shared by the OCR
// normalizer, the QR payload parser, and the field matcher.
//
// A field that could not be extracted is absent (nil), never defaulted —
// a missing amount and a zero amount are different facts.
package fields

import (
	"time"

	"github.com/shopspring/decimal"
)

// Provenance identifies which extraction path produced a field set.
type Provenance string

const (
	ProvenanceOCR Provenance = "ocr"
	ProvenanceQR  Provenance = "qr"
)

// Canonical field names, shared by matcher policy, verdict weights,
// and comparison evidence.
const (
	FieldAmount          = "amount"
	FieldTaxAmount       = "taxAmount"
	FieldMerchant        = "merchantId"
	FieldTransactionRef  = "transactionRef"
	FieldTimestamp       = "timestamp"
	FieldSenderAccount   = "senderAccount"
	FieldSenderName      = "senderName"
	FieldSenderBank      = "senderBank"
	FieldReceiverAccount = "receiverAccount"
	FieldReceiverName    = "receiverName"
	FieldReceiverBank    = "receiverBank"
)

// Money is a fixed-point amount with its currency code and the confidence
// of its extraction. QR-derived fields always carry confidence 1.0.
type Money struct {
	Value      decimal.Decimal `json:"value"`
	Currency   string          `json:"currency"`
	Confidence float64         `json:"confidence"`
}

// Text is an extracted string field.
type Text struct {
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

// Instant is an extracted timestamp field.
type Instant struct {
	Value      time.Time `json:"value"`
	Confidence float64   `json:"confidence"`
}

// TypedFields is one source's view of a claimed transaction. Two instances
// exist per submission: one from OCR text, one from the QR payload.
type TypedFields struct {
	Provenance Provenance `json:"provenance"`

	Amount         *Money   `json:"amount,omitempty"`
	TaxAmount      *Money   `json:"taxAmount,omitempty"`
	Merchant       *Text    `json:"merchantId,omitempty"`
	TransactionRef *Text    `json:"transactionRef,omitempty"`
	Timestamp      *Instant `json:"timestamp,omitempty"`

	// Party fields carried by the seal payload; OCR rarely recovers them.
	SenderAccount   *Text `json:"senderAccount,omitempty"`
	SenderName      *Text `json:"senderName,omitempty"`
	SenderBank      *Text `json:"senderBank,omitempty"`
	ReceiverAccount *Text `json:"receiverAccount,omitempty"`
	ReceiverName    *Text `json:"receiverName,omitempty"`
	ReceiverBank    *Text `json:"receiverBank,omitempty"`
}

// New returns an empty field set tagged with its provenance.
func New(p Provenance) *TypedFields {
	return &TypedFields{Provenance: p}
}

// Empty reports whether no field at all was extracted.
func (tf *TypedFields) Empty() bool {
	return tf.Amount == nil && tf.TaxAmount == nil && tf.Merchant == nil &&
		tf.TransactionRef == nil && tf.Timestamp == nil &&
		tf.SenderAccount == nil && tf.SenderName == nil && tf.SenderBank == nil &&
		tf.ReceiverAccount == nil && tf.ReceiverName == nil && tf.ReceiverBank == nil
}

// QRText wraps a QR-derived string at full confidence.
func QRText(v string) *Text { return &Text{Value: v, Confidence: 1.0} }

// QRMoney wraps a QR-derived amount at full confidence.
func QRMoney(v decimal.Decimal, currency string) *Money {
	return &Money{Value: v, Currency: currency, Confidence: 1.0}
}

// QRInstant wraps a QR-derived timestamp at full confidence.
func QRInstant(t time.Time) *Instant { return &Instant{Value: t, Confidence: 1.0} }
