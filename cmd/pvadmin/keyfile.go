package main

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/term"
)

// Argon2id parameters for passphrase-derived bundle keys.
const (
	argonTime    = 3
	argonMemory  = 64 * 1024 // KiB
	argonThreads = 4
)

// keyBundle is the on-disk format of an exported key set. The payload is a
// JSON map of key name to hex key material, sealed with XChaCha20-Poly1305
// under an Argon2id passphrase-derived key.
type keyBundle struct {
	Version int    `json:"version"`
	Salt    string `json:"salt"`
	Nonce   string `json:"nonce"`
	Sealed  string `json:"sealed"`
}

func runExportKey(keyDir, outPath string) bool {
	keys, err := collectKeys(keyDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return false
	}
	if len(keys) == 0 {
		fmt.Fprintf(os.Stderr, "Error: No keys found in %s\n", keyDir)
		return false
	}

	passphrase, ok := readPassphrase(true)
	if !ok {
		return false
	}

	data, err := sealKeys(keys, passphrase)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to seal key bundle: %v\n", err)
		return false
	}

	if err := os.WriteFile(outPath, data, 0o600); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to write bundle: %v\n", err)
		return false
	}

	fmt.Printf("Exported %d key(s) to %s\n", len(keys), outPath)
	return true
}

func runImportKey(keyDir, inPath string) bool {
	data, err := os.ReadFile(inPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to read bundle: %v\n", err)
		return false
	}

	passphrase, ok := readPassphrase(false)
	if !ok {
		return false
	}

	keys, err := openKeys(data, passphrase)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to open key bundle: %v\n", err)
		return false
	}

	written, err := writeKeys(keyDir, keys)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return false
	}

	fmt.Printf("Imported %d key(s) into %s\n", written, keyDir)
	if written < len(keys) {
		fmt.Printf("Skipped %d existing key(s); remove them first to replace.\n", len(keys)-written)
	}
	return true
}

// readPassphrase prompts on the terminal without echo. When confirm is set
// the passphrase must be entered twice.
func readPassphrase(confirm bool) ([]byte, bool) {
	fmt.Print("Passphrase: ")
	passphrase, err := term.ReadPassword(syscall.Stdin)
	fmt.Println()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading passphrase: %v\n", err)
		return nil, false
	}
	if len(passphrase) < 8 {
		fmt.Fprintln(os.Stderr, "Error: Passphrase must be at least 8 characters")
		return nil, false
	}

	if confirm {
		fmt.Print("Confirm passphrase: ")
		again, err := term.ReadPassword(syscall.Stdin)
		fmt.Println()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading passphrase: %v\n", err)
			return nil, false
		}
		if !bytes.Equal(passphrase, again) {
			fmt.Fprintln(os.Stderr, "Error: Passphrases do not match")
			return nil, false
		}
	}

	return passphrase, true
}

// collectKeys reads all *.key files in keyDir into a name → material map.
func collectKeys(keyDir string) (map[string]string, error) {
	entries, err := os.ReadDir(keyDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read key directory: %w", err)
	}

	keys := make(map[string]string)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".key") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(keyDir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", e.Name(), err)
		}
		name := strings.TrimSuffix(e.Name(), ".key")
		keys[name] = strings.TrimSpace(string(data))
	}
	return keys, nil
}

// writeKeys persists imported keys as 0600 files, never overwriting an
// existing key file. Returns how many files were written.
func writeKeys(keyDir string, keys map[string]string) (int, error) {
	if err := os.MkdirAll(keyDir, 0o700); err != nil {
		return 0, fmt.Errorf("failed to create key directory: %w", err)
	}

	written := 0
	for name, material := range keys {
		path := filepath.Join(keyDir, name+".key")
		if _, err := os.Stat(path); err == nil {
			continue
		}
		if err := os.WriteFile(path, []byte(material+"\n"), 0o600); err != nil {
			return written, fmt.Errorf("failed to write %s: %w", path, err)
		}
		written++
	}
	return written, nil
}

func sealKeys(keys map[string]string, passphrase []byte) ([]byte, error) {
	payload, err := json.Marshal(keys)
	if err != nil {
		return nil, err
	}

	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}

	aead, err := chacha20poly1305.NewX(deriveKey(passphrase, salt))
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	bundle := keyBundle{
		Version: 1,
		Salt:    base64.StdEncoding.EncodeToString(salt),
		Nonce:   base64.StdEncoding.EncodeToString(nonce),
		Sealed:  base64.StdEncoding.EncodeToString(aead.Seal(nil, nonce, payload, nil)),
	}
	return json.MarshalIndent(bundle, "", "  ")
}

func openKeys(data, passphrase []byte) (map[string]string, error) {
	var bundle keyBundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		return nil, fmt.Errorf("malformed bundle: %w", err)
	}
	if bundle.Version != 1 {
		return nil, fmt.Errorf("unsupported bundle version %d", bundle.Version)
	}

	salt, err := base64.StdEncoding.DecodeString(bundle.Salt)
	if err != nil {
		return nil, fmt.Errorf("malformed bundle: %w", err)
	}
	nonce, err := base64.StdEncoding.DecodeString(bundle.Nonce)
	if err != nil {
		return nil, fmt.Errorf("malformed bundle: %w", err)
	}
	sealed, err := base64.StdEncoding.DecodeString(bundle.Sealed)
	if err != nil {
		return nil, fmt.Errorf("malformed bundle: %w", err)
	}

	aead, err := chacha20poly1305.NewX(deriveKey(passphrase, salt))
	if err != nil {
		return nil, err
	}

	payload, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("wrong passphrase or corrupt bundle")
	}

	var keys map[string]string
	if err := json.Unmarshal(payload, &keys); err != nil {
		return nil, fmt.Errorf("malformed payload: %w", err)
	}
	return keys, nil
}

func deriveKey(passphrase, salt []byte) []byte {
	return argon2.IDKey(passphrase, salt, argonTime, argonMemory, argonThreads, chacha20poly1305.KeySize)
}
