package kv

import (
	"crypto/cipher"
	"crypto/hkdf"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// ErrSealed is returned by [Sealer.Open] when the data cannot be
// authenticated, usually because the encryption key changed.
var ErrSealed = errors.New("kv: cannot open sealed data (wrong encryption key?)")

// hkdfInfo binds derived keys to this storage format.
const hkdfInfo = "spellin kv seal v1"

// Sealer encrypts values at rest with XChaCha20-Poly1305. The key is derived
// with HKDF-SHA256 from the configured encryption key, salted with the store
// ID, so two namespaces sharing a passphrase still get distinct keys.
//
// A nil *Sealer is valid and passes data through unchanged.
type Sealer struct {
	aead    cipher.AEAD
	storeID []byte
}

// NewSealer returns a [Sealer] for the namespace storeID. An empty
// encryptionKey disables sealing and returns (nil, nil).
func NewSealer(storeID, encryptionKey string) (*Sealer, error) {
	if encryptionKey == "" {
		return nil, nil
	}
	key, err := hkdf.Key(sha256.New, []byte(encryptionKey), []byte(storeID), hkdfInfo, chacha20poly1305.KeySize)
	if err != nil {
		return nil, fmt.Errorf("kv: derive key: %w", err)
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("kv: init cipher: %w", err)
	}
	return &Sealer{aead: aead, storeID: []byte(storeID)}, nil
}

// Seal encrypts plaintext. The random nonce is prepended to the result.
func (s *Sealer) Seal(plaintext []byte) ([]byte, error) {
	if s == nil {
		return plaintext, nil
	}
	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(plaintext)+chacha20poly1305.Overhead)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("kv: nonce: %w", err)
	}
	return s.aead.Seal(nonce, nonce, plaintext, s.storeID), nil
}

// Open reverses [Sealer.Seal].
func (s *Sealer) Open(sealed []byte) ([]byte, error) {
	if s == nil {
		return sealed, nil
	}
	n := s.aead.NonceSize()
	if len(sealed) < n+chacha20poly1305.Overhead {
		return nil, ErrSealed
	}
	plain, err := s.aead.Open(nil, sealed[:n], sealed[n:], s.storeID)
	if err != nil {
		return nil, ErrSealed
	}
	return plain, nil
}

// Enabled reports whether s actually encrypts.
func (s *Sealer) Enabled() bool {
	return s != nil
}
