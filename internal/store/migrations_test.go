package store

import (
	"context"
	"errors"
	"testing"
)

func TestValidateMigrations(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		list    []migration
		wantErr bool
	}{
		{
			name: "contiguous from one",
			list: []migration{{version: 1}, {version: 2}, {version: 3}},
		},
		{
			name:    "gap",
			list:    []migration{{version: 1}, {version: 3}},
			wantErr: true,
		},
		{
			name:    "does not start at one",
			list:    []migration{{version: 2}},
			wantErr: true,
		},
		{
			name:    "duplicate",
			list:    []migration{{version: 1}, {version: 1}},
			wantErr: true,
		},
		{
			name: "empty",
			list: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateMigrations(tt.list)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateMigrations = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				var migErr *MigrationError
				if !errors.As(err, &migErr) {
					t.Errorf("error type = %T, want *MigrationError", err)
				}
			}
		})
	}
}

func TestShippedMigrationsAreContiguous(t *testing.T) {
	t.Parallel()

	if err := validateMigrations(migrations); err != nil {
		t.Fatalf("shipped migration list invalid: %v", err)
	}
}

func TestRunMigrationsRejectsFutureSchema(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, Options{})
	ctx := context.Background()

	tx, began, err := s.BeginWrite()
	if err != nil {
		t.Fatalf("BeginWrite: %v", err)
	}
	_, err = tx.Exec("UPDATE schema_version SET version = ? WHERE id = 1", len(migrations)+5)
	if endErr := s.EndWrite(tx, began, err); endErr != nil {
		t.Fatalf("bump version: %v", endErr)
	}

	err = s.RunMigrations(ctx)
	var migErr *MigrationError
	if !errors.As(err, &migErr) {
		t.Fatalf("RunMigrations on future schema = %v, want *MigrationError", err)
	}
}
