// Package verify orchestrates one verification: normalize the OCR text,
// decode the QR seal, compare the two field sets, decide a verdict, and
// feed rejections into the fraud-trend index.
package verify

import (
	"time"
)

// QRStatus describes what happened to the QR payload during decoding.
type QRStatus string

const (
	QRDecoded           QRStatus = "decoded"
	QRAbsent            QRStatus = "absent"
	QRUndecodable       QRStatus = "undecodable"
	QRBadSignature      QRStatus = "bad_signature"
	QRUnsupportedSchema QRStatus = "unsupported_schema"
)

// Request is one verification submission as received at the API edge.
type Request struct {
	AccountOwnerRef string
	OCRText         string
	QRPayload       []byte
	CapturedAt      time.Time
	DeviceID        string
	SessionID       string
}
