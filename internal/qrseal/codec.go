package qrseal

import (
	"bytes"
	"compress/zlib"
	"crypto/ed25519"
	"fmt"
	"io"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/dokubo/veriseal/internal/fields"
)

// encMode is the canonical CBOR encoder. Signing requires deterministic
// bytes, so both Pack and the signed-message comparison use it.
var encMode cbor.EncMode

func init() {
	var err error
	encMode, err = cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic("qrseal: canonical CBOR mode: " + err.Error())
	}
}

// Parser decodes seal payloads. When publicKey is set, envelopes with
// signatures that fail verification are rejected.
type Parser struct {
	publicKey ed25519.PublicKey
}

// NewParser creates a parser. publicKey may be nil, in which case
// signatures are not checked (development / key-rotation gap).
func NewParser(publicKey ed25519.PublicKey) *Parser {
	return &Parser{publicKey: publicKey}
}

// Parse decodes raw seal bytes into a QR-provenance field set. Every
// populated field carries confidence 1.0; keys missing from the payload
// yield absent fields, which is a legal partial decode, not an error.
func (p *Parser) Parse(raw []byte) (*fields.TypedFields, error) {
	zr, err := zlib.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUndecodablePayload, err)
	}
	inner, err := io.ReadAll(zr)
	_ = zr.Close()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUndecodablePayload, err)
	}

	// Envelope is a two-element array [msg, sig]. Keeping msg as raw CBOR
	// preserves the exact signed bytes.
	var envelope []cbor.RawMessage
	if err := cbor.Unmarshal(inner, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUndecodablePayload, err)
	}
	if len(envelope) != 2 {
		return nil, fmt.Errorf("%w: envelope has %d elements, want 2", ErrUndecodablePayload, len(envelope))
	}

	var sig []byte
	if err := cbor.Unmarshal(envelope[1], &sig); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUndecodablePayload, err)
	}

	if p.publicKey != nil {
		if len(sig) != ed25519.SignatureSize || !ed25519.Verify(p.publicKey, envelope[0], sig) {
			return nil, ErrBadSignature
		}
	}

	var c compactSeal
	if err := cbor.Unmarshal(envelope[0], &c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUndecodablePayload, err)
	}
	if c.V == nil {
		return nil, fmt.Errorf("%w: missing version key", ErrUndecodablePayload)
	}
	if *c.V != SchemaVersion {
		return nil, fmt.Errorf("%w: got v%d", ErrUnsupportedSchema, *c.V)
	}

	currency := DefaultCurrency
	if c.C != nil && *c.C != "" {
		currency = *c.C
	}

	tf := fields.New(fields.ProvenanceQR)
	if c.X != nil {
		tf.Amount = fields.QRMoney(fromMinorUnits(*c.X), currency)
	}
	if c.G != nil {
		tf.TaxAmount = fields.QRMoney(fromMinorUnits(*c.G), currency)
	}
	if c.T != nil {
		tf.Timestamp = fields.QRInstant(time.Unix(*c.T, 0).UTC())
	}
	if c.R != nil {
		tf.TransactionRef = fields.QRText(*c.R)
	}
	if c.M != nil {
		tf.Merchant = fields.QRText(*c.M)
	}
	if c.S != nil {
		tf.SenderAccount = fields.QRText(*c.S)
	}
	if c.N != nil {
		tf.SenderName = fields.QRText(*c.N)
	}
	if c.K != nil {
		tf.SenderBank = fields.QRText(*c.K)
	}
	if c.D != nil {
		tf.ReceiverAccount = fields.QRText(*c.D)
	}
	if c.O != nil {
		tf.ReceiverName = fields.QRText(*c.O)
	}
	if c.L != nil {
		tf.ReceiverBank = fields.QRText(*c.L)
	}
	return tf, nil
}

// Pack serializes and signs a Seal into the wire payload. The generation
// side lives with merchants; this encoder exists for tests and the dev
// tooling under cmd/sealgen.
func Pack(seal *Seal, key ed25519.PrivateKey) ([]byte, error) {
	v := uint64(SchemaVersion)
	x := minorUnits(seal.Amount)
	t := seal.Timestamp.Unix()

	c := compactSeal{V: &v, X: &x, T: &t}
	if seal.Currency != "" && seal.Currency != DefaultCurrency {
		cur := seal.Currency
		c.C = &cur
	}
	if seal.TransactionRef != "" {
		c.R = &seal.TransactionRef
	}
	if seal.MerchantID != "" {
		c.M = &seal.MerchantID
	}
	if seal.TaxAmount != nil {
		g := minorUnits(*seal.TaxAmount)
		c.G = &g
	}
	setIf := func(dst **string, v string) {
		if v != "" {
			s := v
			*dst = &s
		}
	}
	setIf(&c.S, seal.SenderAccount)
	setIf(&c.N, seal.SenderName)
	setIf(&c.K, seal.SenderBank)
	setIf(&c.D, seal.ReceiverAccount)
	setIf(&c.O, seal.ReceiverName)
	setIf(&c.L, seal.ReceiverBank)

	msg, err := encMode.Marshal(&c)
	if err != nil {
		return nil, fmt.Errorf("qrseal: encode message: %w", err)
	}

	sig := ed25519.Sign(key, msg)

	inner, err := encMode.Marshal([]interface{}{cbor.RawMessage(msg), sig})
	if err != nil {
		return nil, fmt.Errorf("qrseal: encode envelope: %w", err)
	}

	var buf bytes.Buffer
	zw, err := zlib.NewWriterLevel(&buf, zlib.BestCompression)
	if err != nil {
		return nil, fmt.Errorf("qrseal: compress: %w", err)
	}
	if _, err := zw.Write(inner); err != nil {
		return nil, fmt.Errorf("qrseal: compress: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("qrseal: compress: %w", err)
	}
	return buf.Bytes(), nil
}
