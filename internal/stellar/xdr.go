package stellar

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Minimal XDR encoding for a single-payment TransactionEnvelope. Only the
// constructs this service submits are covered; anything else belongs in a
// full SDK.
const (
	envelopeTypeTx = 2

	keyTypeEd25519 = 0

	precondTime = 1
	memoNone    = 0

	opTypePayment = 1

	assetTypeCreditAlphanum4  = 1
	assetTypeCreditAlphanum12 = 2
)

// baseFee is the per-operation fee in stroops submitted with every transaction.
const baseFee = 100

// txValidity bounds how long a submitted envelope stays valid.
const txValidity = 30 * time.Second

type xdrWriter struct {
	buf bytes.Buffer
}

func (w *xdrWriter) putUint32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	w.buf.Write(b[:])
}

func (w *xdrWriter) putUint64(v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	w.buf.Write(b[:])
}

func (w *xdrWriter) putInt64(v int64) {
	w.putUint64(uint64(v))
}

// putFixed writes opaque bytes without a length prefix; len must be a
// multiple of four.
func (w *xdrWriter) putFixed(b []byte) {
	w.buf.Write(b)
}

// putOpaque writes variable-length opaque data with padding to four bytes.
func (w *xdrWriter) putOpaque(b []byte) {
	w.putUint32(uint32(len(b)))
	w.buf.Write(b)
	if pad := len(b) % 4; pad != 0 {
		w.buf.Write(make([]byte, 4-pad))
	}
}

func (w *xdrWriter) putAccount(raw []byte) {
	w.putUint32(keyTypeEd25519)
	w.putFixed(raw)
}

func (w *xdrWriter) bytes() []byte {
	return w.buf.Bytes()
}

// asset identifies the token being moved: an issued alphanum asset.
type asset struct {
	code   string
	issuer []byte
}

func (a asset) encode(w *xdrWriter) error {
	switch n := len(a.code); {
	case n >= 1 && n <= 4:
		w.putUint32(assetTypeCreditAlphanum4)
		code := make([]byte, 4)
		copy(code, a.code)
		w.putFixed(code)
	case n <= 12:
		w.putUint32(assetTypeCreditAlphanum12)
		code := make([]byte, 12)
		copy(code, a.code)
		w.putFixed(code)
	default:
		return fmt.Errorf("asset code %q too long", a.code)
	}
	w.putUint32(keyTypeEd25519)
	w.putFixed(a.issuer)
	return nil
}

// paymentTx describes the one transaction shape this service submits: a
// single payment of an issued asset.
type paymentTx struct {
	source      Keypair
	sequence    int64
	destination []byte
	asset       asset
	amount      decimal.Decimal
	now         time.Time
}

// buildEnvelope encodes, signs and returns the base64-ready envelope XDR.
func buildEnvelope(tx paymentTx, networkPassphrase string) ([]byte, error) {
	stroops, err := toStroops(tx.amount)
	if err != nil {
		return nil, err
	}

	var body xdrWriter
	body.putAccount(tx.source.publicKey())
	body.putUint32(baseFee)
	body.putInt64(tx.sequence)

	// Time precondition mirroring the 30 second transaction timeout.
	body.putUint32(precondTime)
	body.putUint64(0)
	body.putUint64(uint64(tx.now.Add(txValidity).Unix()))

	body.putUint32(memoNone)

	body.putUint32(1) // one operation
	body.putUint32(0) // operation source absent
	body.putUint32(opTypePayment)
	body.putAccount(tx.destination)
	if err := tx.asset.encode(&body); err != nil {
		return nil, err
	}
	body.putInt64(stroops)
	body.putUint32(0) // tx ext

	// Signature payload: H(networkID || ENVELOPE_TYPE_TX || tx)
	networkID := sha256.Sum256([]byte(networkPassphrase))
	var payload xdrWriter
	payload.putFixed(networkID[:])
	payload.putUint32(envelopeTypeTx)
	payload.putFixed(body.bytes())
	digest := sha256.Sum256(payload.bytes())
	signature := tx.source.Sign(digest[:])
	hint := tx.source.Hint()

	var envelope xdrWriter
	envelope.putUint32(envelopeTypeTx)
	envelope.putFixed(body.bytes())
	envelope.putUint32(1) // one signature
	envelope.putFixed(hint[:])
	envelope.putOpaque(signature)

	return envelope.bytes(), nil
}

// toStroops converts a 7-decimal-place asset amount to the int64 wire unit.
func toStroops(amount decimal.Decimal) (int64, error) {
	shifted := amount.Shift(7)
	if !shifted.IsInteger() {
		return 0, fmt.Errorf("amount %s exceeds 7 decimal places", amount)
	}
	if !shifted.IsPositive() {
		return 0, fmt.Errorf("amount %s must be positive", amount)
	}
	return shifted.IntPart(), nil
}
