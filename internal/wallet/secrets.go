package wallet

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/nacl/secretbox"
)

// SecretBox seals wallet secret keys before they reach storage.
type SecretBox struct {
	key [32]byte
}

// NewSecretBox derives a box from a 64-character hex key. An empty key
// generates a random one, which only suits development: sealed secrets
// become unreadable after a restart.
func NewSecretBox(hexKey string) (*SecretBox, error) {
	box := &SecretBox{}
	if hexKey == "" {
		if _, err := rand.Read(box.key[:]); err != nil {
			return nil, err
		}
		return box, nil
	}
	raw, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("encryption key must be hex: %w", err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("encryption key must be 32 bytes, got %d", len(raw))
	}
	copy(box.key[:], raw)
	return box, nil
}

// Seal encrypts the secret and returns a base64 blob with the nonce prepended.
func (b *SecretBox) Seal(secret string) (string, error) {
	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", err
	}
	sealed := secretbox.Seal(nonce[:], []byte(secret), &nonce, &b.key)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Open decrypts a blob produced by Seal.
func (b *SecretBox) Open(blob string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return "", err
	}
	if len(raw) < 24 {
		return "", errors.New("sealed secret too short")
	}
	var nonce [24]byte
	copy(nonce[:], raw[:24])
	opened, ok := secretbox.Open(nil, raw[24:], &nonce, &b.key)
	if !ok {
		return "", errors.New("sealed secret failed authentication")
	}
	return string(opened), nil
}
