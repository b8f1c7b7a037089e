package stellar

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base32"
	"errors"
	"fmt"
)

// strkey version bytes, per SEP-23.
const (
	versionAccountID = 6 << 3  // 'G'
	versionSeed      = 18 << 3 // 'S'
)

var (
	// ErrInvalidSecret indicates a secret key that fails strkey decoding.
	ErrInvalidSecret = errors.New("invalid secret key")
	// ErrInvalidAddress indicates an address that fails strkey decoding.
	ErrInvalidAddress = errors.New("invalid address")
)

var b32 = base32.StdEncoding.WithPadding(base32.NoPadding)

// Keypair holds an ed25519 signing key in Stellar strkey form.
type Keypair struct {
	address string
	secret  string
	priv    ed25519.PrivateKey
}

// NewKeypair generates a random keypair.
func NewKeypair() (Keypair, error) {
	var seed [32]byte
	if _, err := rand.Read(seed[:]); err != nil {
		return Keypair{}, err
	}
	return keypairFromSeed(seed[:])
}

// KeypairFromSecret reconstructs a keypair from an S... secret string.
func KeypairFromSecret(secret string) (Keypair, error) {
	seed, err := decodeStrkey(secret, versionSeed)
	if err != nil {
		return Keypair{}, ErrInvalidSecret
	}
	return keypairFromSeed(seed)
}

func keypairFromSeed(seed []byte) (Keypair, error) {
	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)
	return Keypair{
		address: encodeStrkey(pub, versionAccountID),
		secret:  encodeStrkey(seed, versionSeed),
		priv:    priv,
	}, nil
}

// Address returns the G... public account address.
func (k Keypair) Address() string { return k.address }

// Secret returns the S... secret seed.
func (k Keypair) Secret() string { return k.secret }

// Sign produces an ed25519 signature over the input.
func (k Keypair) Sign(input []byte) []byte {
	return ed25519.Sign(k.priv, input)
}

// Hint returns the last four public key bytes used in decorated signatures.
func (k Keypair) Hint() [4]byte {
	pub := k.priv.Public().(ed25519.PublicKey)
	var hint [4]byte
	copy(hint[:], pub[len(pub)-4:])
	return hint
}

func (k Keypair) publicKey() []byte {
	return k.priv.Public().(ed25519.PublicKey)
}

// DecodeAddress validates a G... address and returns the raw 32-byte key.
func DecodeAddress(address string) ([]byte, error) {
	raw, err := decodeStrkey(address, versionAccountID)
	if err != nil {
		return nil, ErrInvalidAddress
	}
	return raw, nil
}

// IsValidAddress reports whether the string is a well-formed account address.
func IsValidAddress(address string) bool {
	_, err := DecodeAddress(address)
	return err == nil
}

func encodeStrkey(raw []byte, version byte) string {
	payload := make([]byte, 0, len(raw)+3)
	payload = append(payload, version)
	payload = append(payload, raw...)
	crc := crc16(payload)
	payload = append(payload, byte(crc&0xff), byte(crc>>8))
	return b32.EncodeToString(payload)
}

func decodeStrkey(s string, version byte) ([]byte, error) {
	payload, err := b32.DecodeString(s)
	if err != nil {
		return nil, err
	}
	if len(payload) != 35 {
		return nil, fmt.Errorf("strkey must decode to 35 bytes, got %d", len(payload))
	}
	if payload[0] != version {
		return nil, fmt.Errorf("unexpected strkey version byte %d", payload[0])
	}
	body := payload[:33]
	want := uint16(payload[33]) | uint16(payload[34])<<8
	if crc16(body) != want {
		return nil, fmt.Errorf("strkey checksum mismatch")
	}
	return payload[1:33], nil
}

// crc16 implements CRC16-XModem over the payload.
func crc16(data []byte) uint16 {
	var crc uint16
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
