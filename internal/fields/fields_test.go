package fields

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestEmpty(t *testing.T) {
	tf := New(ProvenanceOCR)
	if !tf.Empty() {
		t.Error("New field set should be empty")
	}

	tf.Amount = QRMoney(decimal.New(100, 0), "NGN")
	if tf.Empty() {
		t.Error("Field set with amount should not be empty")
	}

	tf = New(ProvenanceQR)
	tf.ReceiverBank = QRText("Zenith")
	if tf.Empty() {
		t.Error("Field set with a party field should not be empty")
	}
}

func TestQRWrappersFullConfidence(t *testing.T) {
	if got := QRText("x").Confidence; got != 1.0 {
		t.Errorf("QRText confidence = %v, want 1.0", got)
	}
	if got := QRMoney(decimal.New(1, 0), "NGN").Confidence; got != 1.0 {
		t.Errorf("QRMoney confidence = %v, want 1.0", got)
	}
	if got := QRInstant(time.Now()).Confidence; got != 1.0 {
		t.Errorf("QRInstant confidence = %v, want 1.0", got)
	}
}
