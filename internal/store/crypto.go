package store

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// Key derivation purposes. Separate subkeys keep metadata rows and backup
// payloads cryptographically independent.
const (
	purposeMetadata = "photovault/metadata/v1"
	purposeBackup   = "photovault/backup/v1"
)

// sealer wraps an AEAD derived from the master key for one purpose.
type sealer struct {
	key []byte
}

// newSealer derives a purpose-specific subkey from masterKey via
// HKDF-SHA256 and prepares a ChaCha20-Poly1305 AEAD over it.
func newSealer(masterKey []byte, purpose string) (*sealer, error) {
	if len(masterKey) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("store: master key must be %d bytes, got %d", chacha20poly1305.KeySize, len(masterKey))
	}

	subKey := make([]byte, chacha20poly1305.KeySize)
	kdf := hkdf.New(sha256.New, masterKey, nil, []byte(purpose))
	if _, err := io.ReadFull(kdf, subKey); err != nil {
		return nil, fmt.Errorf("store: key derivation failed: %w", err)
	}

	return &sealer{key: subKey}, nil
}

// seal encrypts plaintext and prepends the random nonce.
func (s *sealer) seal(plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("store: nonce generation failed: %w", err)
	}

	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

// open decrypts a sealed payload produced by seal.
func (s *sealer) open(sealed []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return nil, err
	}

	if len(sealed) < aead.NonceSize() {
		return nil, fmt.Errorf("store: sealed payload too short")
	}

	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("store: decryption failed: %w", err)
	}
	return plaintext, nil
}
