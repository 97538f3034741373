// Package keystore provides the secure key storage contract used by the
// store for at-rest encryption, plus a file-backed implementation for
// deployments without a platform keychain.
package keystore

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"photovault/internal/logging"
)

// KeySize is the size in bytes of keys produced by this package.
const KeySize = 32

// Provider supplies named encryption keys. Implementations must return the
// same key bytes for the same name across process restarts.
type Provider interface {
	GetOrCreateKey(name string) ([]byte, error)
}

// FileProvider stores keys as hex-encoded 0600 files under a directory.
// It is the default Provider when no platform keychain is wired in.
type FileProvider struct {
	dir string
	mu  sync.Mutex
}

// NewFileProvider creates a FileProvider rooted at dir, creating the
// directory if needed.
func NewFileProvider(dir string) (*FileProvider, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create keystore directory: %w", err)
	}
	return &FileProvider{dir: dir}, nil
}

// GetOrCreateKey returns the key stored under name, generating and
// persisting a new random key on first use.
func (p *FileProvider) GetOrCreateKey(name string) ([]byte, error) {
	if err := validateKeyName(name); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	path := filepath.Join(p.dir, name+".key")

	data, err := os.ReadFile(path)
	if err == nil {
		key, decErr := hex.DecodeString(strings.TrimSpace(string(data)))
		if decErr != nil || len(key) != KeySize {
			return nil, fmt.Errorf("keystore: corrupt key file %s", path)
		}
		return key, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("keystore: failed to read key %s: %w", name, err)
	}

	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("keystore: failed to generate key: %w", err)
	}

	encoded := hex.EncodeToString(key) + "\n"
	if err := os.WriteFile(path, []byte(encoded), 0o600); err != nil {
		return nil, fmt.Errorf("keystore: failed to persist key %s: %w", name, err)
	}

	logging.Info("Generated new encryption key %q", name)
	return key, nil
}

// validateKeyName rejects names that would escape the keystore directory.
func validateKeyName(name string) error {
	if name == "" {
		return fmt.Errorf("keystore: key name must not be empty")
	}
	if strings.ContainsAny(name, "/\\") || strings.Contains(name, "..") {
		return fmt.Errorf("keystore: invalid key name %q", name)
	}
	return nil
}
