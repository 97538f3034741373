package store

import (
	"bytes"
	"context"
	"database/sql"
	"testing"
)

func TestUpsertMetadataRoundTrip(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, Options{})
	ctx := context.Background()

	item := testItem(1)
	if _, err := s.SaveItem(ctx, ItemWrite{Item: item}); err != nil {
		t.Fatalf("SaveItem: %v", err)
	}

	entry := MetadataEntry{MediaItemID: item.ID, Namespace: NamespaceCustom, Key: "caption", Value: "sunset at the pier"}
	if err := s.UpsertMetadata(ctx, entry); err != nil {
		t.Fatalf("UpsertMetadata: %v", err)
	}

	// Second write to the same key replaces the value.
	entry.Value = "sunrise, actually"
	if err := s.UpsertMetadata(ctx, entry); err != nil {
		t.Fatalf("UpsertMetadata update: %v", err)
	}

	entries, err := s.GetMetadata(ctx, item.ID, NamespaceCustom)
	if err != nil {
		t.Fatalf("GetMetadata: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if entries[0].Value != "sunrise, actually" {
		t.Errorf("value = %q, want the updated caption", entries[0].Value)
	}
}

func TestUpsertMetadataRejectsInvalidInput(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, Options{})
	ctx := context.Background()

	item := testItem(2)
	if _, err := s.SaveItem(ctx, ItemWrite{Item: item}); err != nil {
		t.Fatalf("SaveItem: %v", err)
	}

	tests := []struct {
		name  string
		entry MetadataEntry
	}{
		{
			name:  "unknown namespace",
			entry: MetadataEntry{MediaItemID: item.ID, Namespace: "vendor", Key: "k", Value: "v"},
		},
		{
			name:  "empty key",
			entry: MetadataEntry{MediaItemID: item.ID, Namespace: NamespaceCustom, Key: "", Value: "v"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.UpsertMetadata(ctx, tt.entry); err == nil {
				t.Error("UpsertMetadata accepted invalid entry")
			}
		})
	}
}

// Metadata values must never appear in cleartext in the store file.
func TestMetadataSealedAtRest(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, Options{})
	ctx := context.Background()

	item := testItem(3)
	secret := "latitude-redacted-house-address"
	write := ItemWrite{
		Item:     item,
		Metadata: []MetadataEntry{{MediaItemID: item.ID, Namespace: NamespaceEXIF, Key: "gps.note", Value: secret}},
	}
	if _, err := s.SaveItem(ctx, write); err != nil {
		t.Fatalf("SaveItem: %v", err)
	}

	raw, err := sql.Open("sqlite3", s.Path()+"?mode=ro")
	if err != nil {
		t.Fatalf("open raw: %v", err)
	}
	defer raw.Close()

	var stored []byte
	err = raw.QueryRowContext(ctx,
		"SELECT value FROM metadata_entries WHERE photo_id = ?", item.ID).Scan(&stored)
	if err != nil {
		t.Fatalf("read raw value: %v", err)
	}

	if bytes.Contains(stored, []byte(secret)) {
		t.Error("metadata value stored in cleartext")
	}

	entries, err := s.GetMetadata(ctx, item.ID, NamespaceEXIF)
	if err != nil {
		t.Fatalf("GetMetadata: %v", err)
	}
	if len(entries) != 1 || entries[0].Value != secret {
		t.Errorf("decrypted read = %+v, want %q", entries, secret)
	}
}

func TestSealerRoundTripAndTamper(t *testing.T) {
	t.Parallel()

	key := bytes.Repeat([]byte{0x42}, 32)
	sealer, err := newSealer(key, "photovault/test/v1")
	if err != nil {
		t.Fatalf("newSealer: %v", err)
	}

	plain := []byte("hello")
	sealed, err := sealer.seal(plain)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if bytes.Contains(sealed, plain) {
		t.Error("sealed output contains plaintext")
	}

	opened, err := sealer.open(sealed)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !bytes.Equal(opened, plain) {
		t.Errorf("open = %q, want %q", opened, plain)
	}

	sealed[len(sealed)-1] ^= 0xff
	if _, err := sealer.open(sealed); err == nil {
		t.Error("open accepted tampered ciphertext")
	}

	// Different purposes must not decrypt each other's output.
	other, err := newSealer(key, "photovault/other/v1")
	if err != nil {
		t.Fatalf("newSealer: %v", err)
	}
	sealed[len(sealed)-1] ^= 0xff
	if _, err := other.open(sealed); err == nil {
		t.Error("cross-purpose open succeeded")
	}
}
