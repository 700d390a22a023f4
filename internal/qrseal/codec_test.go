package qrseal

import (
	"bytes"
	"compress/zlib"
	"crypto/ed25519"
	"crypto/rand"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dokubo/veriseal/internal/fields"
)

func testKeypair(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return pub, priv
}

func TestPackParseRoundTrip(t *testing.T) {
	pub, priv := testKeypair(t)

	tax := decimal.RequireFromString("337.50")
	seal := &Seal{
		Amount:          decimal.RequireFromString("4500.00"),
		Timestamp:       time.Date(2026, 3, 1, 12, 30, 45, 0, time.UTC),
		TransactionRef:  "TXN-00123",
		MerchantID:      "Cafe Luna",
		TaxAmount:       &tax,
		SenderAccount:   "0123456789",
		SenderName:      "Ada Obi",
		SenderBank:      "GTB",
		ReceiverAccount: "9876543210",
		ReceiverName:    "Cafe Luna Ltd",
		ReceiverBank:    "Zenith",
	}

	payload, err := Pack(seal, priv)
	require.NoError(t, err)

	tf, err := NewParser(pub).Parse(payload)
	require.NoError(t, err)

	assert.Equal(t, fields.ProvenanceQR, tf.Provenance)
	require.NotNil(t, tf.Amount)
	assert.True(t, tf.Amount.Value.Equal(seal.Amount), "amount %s", tf.Amount.Value)
	assert.Equal(t, "NGN", tf.Amount.Currency)
	assert.Equal(t, 1.0, tf.Amount.Confidence)
	require.NotNil(t, tf.TaxAmount)
	assert.True(t, tf.TaxAmount.Value.Equal(tax))
	require.NotNil(t, tf.Timestamp)
	assert.True(t, tf.Timestamp.Value.Equal(seal.Timestamp))
	require.NotNil(t, tf.TransactionRef)
	assert.Equal(t, "TXN-00123", tf.TransactionRef.Value)
	require.NotNil(t, tf.Merchant)
	assert.Equal(t, "Cafe Luna", tf.Merchant.Value)
	require.NotNil(t, tf.SenderAccount)
	assert.Equal(t, "0123456789", tf.SenderAccount.Value)
	require.NotNil(t, tf.ReceiverBank)
	assert.Equal(t, "Zenith", tf.ReceiverBank.Value)
}

func TestParsePartialPayload(t *testing.T) {
	pub, priv := testKeypair(t)

	// Amount and timestamp only; everything else absent.
	seal := &Seal{
		Amount:    decimal.RequireFromString("250.00"),
		Timestamp: time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC),
	}

	payload, err := Pack(seal, priv)
	require.NoError(t, err)

	tf, err := NewParser(pub).Parse(payload)
	require.NoError(t, err)

	assert.NotNil(t, tf.Amount)
	assert.NotNil(t, tf.Timestamp)
	assert.Nil(t, tf.Merchant)
	assert.Nil(t, tf.TransactionRef)
	assert.Nil(t, tf.TaxAmount)
	assert.Nil(t, tf.SenderAccount)
	assert.False(t, tf.Empty())
}

func TestParseExplicitCurrency(t *testing.T) {
	pub, priv := testKeypair(t)

	payload, err := Pack(&Seal{
		Amount:    decimal.RequireFromString("10.00"),
		Currency:  "GHS",
		Timestamp: time.Now().UTC(),
	}, priv)
	require.NoError(t, err)

	tf, err := NewParser(pub).Parse(payload)
	require.NoError(t, err)
	assert.Equal(t, "GHS", tf.Amount.Currency)
}

func TestParseWrongKey(t *testing.T) {
	_, priv := testKeypair(t)
	otherPub, _ := testKeypair(t)

	payload, err := Pack(&Seal{
		Amount:    decimal.RequireFromString("100.00"),
		Timestamp: time.Now().UTC(),
	}, priv)
	require.NoError(t, err)

	_, err = NewParser(otherPub).Parse(payload)
	assert.ErrorIs(t, err, ErrBadSignature)
}

func TestParseNilKeySkipsVerification(t *testing.T) {
	_, priv := testKeypair(t)

	payload, err := Pack(&Seal{
		Amount:    decimal.RequireFromString("100.00"),
		Timestamp: time.Now().UTC(),
	}, priv)
	require.NoError(t, err)

	tf, err := NewParser(nil).Parse(payload)
	require.NoError(t, err)
	assert.NotNil(t, tf.Amount)
}

func TestParseGarbage(t *testing.T) {
	pub, _ := testKeypair(t)
	p := NewParser(pub)

	for _, raw := range [][]byte{
		nil,
		{},
		[]byte("not a payload"),
		{0x78, 0x9c},            // valid zlib header, truncated stream
		{0x00, 0x01, 0x02, 0x03}, // not zlib at all
	} {
		_, err := p.Parse(raw)
		assert.ErrorIs(t, err, ErrUndecodablePayload, "raw %x", raw)
	}
}

func TestParseCorruptedPayload(t *testing.T) {
	pub, priv := testKeypair(t)

	payload, err := Pack(&Seal{
		Amount:    decimal.RequireFromString("4500.00"),
		Timestamp: time.Now().UTC(),
	}, priv)
	require.NoError(t, err)

	// Flip a byte in the middle of the compressed stream.
	corrupted := append([]byte(nil), payload...)
	corrupted[len(corrupted)/2] ^= 0xff

	_, err = NewParser(pub).Parse(corrupted)
	assert.ErrorIs(t, err, ErrUndecodablePayload)
}

func TestParseUnsupportedSchema(t *testing.T) {
	pub, priv := testKeypair(t)

	v := uint64(SchemaVersion + 1)
	x := int64(100)
	ts := time.Now().Unix()
	payload := craftEnvelope(t, &compactSeal{V: &v, X: &x, T: &ts}, priv)

	_, err := NewParser(pub).Parse(payload)
	assert.ErrorIs(t, err, ErrUnsupportedSchema)
}

func TestParseMissingVersion(t *testing.T) {
	pub, priv := testKeypair(t)

	x := int64(100)
	ts := time.Now().Unix()
	payload := craftEnvelope(t, &compactSeal{X: &x, T: &ts}, priv)

	_, err := NewParser(pub).Parse(payload)
	assert.ErrorIs(t, err, ErrUndecodablePayload)
}

func TestParseShortEnvelope(t *testing.T) {
	pub, _ := testKeypair(t)

	inner, err := encMode.Marshal([]interface{}{[]byte("only one element")})
	require.NoError(t, err)

	_, err = NewParser(pub).Parse(compress(t, inner))
	assert.ErrorIs(t, err, ErrUndecodablePayload)
}

func TestMinorUnitsRounding(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"4500.00", 450000},
		{"0.01", 1},
		{"0.005", 1}, // half up
		{"1234.567", 123457},
		{"0", 0},
	}
	for _, tt := range tests {
		got := minorUnits(decimal.RequireFromString(tt.in))
		assert.Equal(t, tt.want, got, "minorUnits(%s)", tt.in)
	}
}

// craftEnvelope builds a signed payload from an arbitrary wire message,
// for cases Pack refuses to produce.
func craftEnvelope(t *testing.T, c *compactSeal, key ed25519.PrivateKey) []byte {
	t.Helper()
	msg, err := encMode.Marshal(c)
	require.NoError(t, err)
	sig := ed25519.Sign(key, msg)
	inner, err := encMode.Marshal([]interface{}{cbor.RawMessage(msg), sig})
	require.NoError(t, err)
	return compress(t, inner)
}

func compress(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	_, err := zw.Write(data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}
