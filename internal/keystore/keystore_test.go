package keystore

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestGetOrCreateKeyStable(t *testing.T) {
	t.Parallel()

	provider, err := NewFileProvider(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileProvider: %v", err)
	}

	first, err := provider.GetOrCreateKey("store")
	if err != nil {
		t.Fatalf("GetOrCreateKey: %v", err)
	}
	if len(first) != KeySize {
		t.Fatalf("key length = %d, want %d", len(first), KeySize)
	}

	second, err := provider.GetOrCreateKey("store")
	if err != nil {
		t.Fatalf("GetOrCreateKey (second call): %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Error("GetOrCreateKey returned different keys for the same name")
	}
}

func TestKeysAreIndependent(t *testing.T) {
	t.Parallel()

	provider, err := NewFileProvider(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileProvider: %v", err)
	}

	a, err := provider.GetOrCreateKey("store")
	if err != nil {
		t.Fatalf("GetOrCreateKey: %v", err)
	}
	b, err := provider.GetOrCreateKey("backup")
	if err != nil {
		t.Fatalf("GetOrCreateKey: %v", err)
	}
	if bytes.Equal(a, b) {
		t.Error("different key names produced identical keys")
	}
}

func TestKeyFilePermissions(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	provider, err := NewFileProvider(dir)
	if err != nil {
		t.Fatalf("NewFileProvider: %v", err)
	}

	if _, err := provider.GetOrCreateKey("store"); err != nil {
		t.Fatalf("GetOrCreateKey: %v", err)
	}

	info, err := os.Stat(filepath.Join(dir, "store.key"))
	if err != nil {
		t.Fatalf("stat key file: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("key file permissions = %o, want 600", perm)
	}
}

func TestInvalidKeyNames(t *testing.T) {
	t.Parallel()

	provider, err := NewFileProvider(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileProvider: %v", err)
	}

	for _, name := range []string{"", "../escape", "a/b", `a\b`} {
		if _, err := provider.GetOrCreateKey(name); err == nil {
			t.Errorf("GetOrCreateKey(%q) succeeded, want error", name)
		}
	}
}

func TestCorruptKeyFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	provider, err := NewFileProvider(dir)
	if err != nil {
		t.Fatalf("NewFileProvider: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "store.key"), []byte("not-hex"), 0o600); err != nil {
		t.Fatalf("write corrupt key: %v", err)
	}

	if _, err := provider.GetOrCreateKey("store"); err == nil {
		t.Error("GetOrCreateKey on corrupt file succeeded, want error")
	}
}
