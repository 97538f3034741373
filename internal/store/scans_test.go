package store

import (
	"context"
	"testing"
)

func TestScanRecordLifecycle(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, Options{})
	ctx := context.Background()

	id, err := s.StartScanRecord(ctx, ScanFull)
	if err != nil {
		t.Fatalf("StartScanRecord: %v", err)
	}

	rec, err := s.GetScanRecord(ctx, id)
	if err != nil {
		t.Fatalf("GetScanRecord: %v", err)
	}
	if rec.Status != ScanRunning {
		t.Errorf("new record status = %s, want running", rec.Status)
	}
	if rec.ScanType != ScanFull {
		t.Errorf("scan type = %s, want full", rec.ScanType)
	}

	if err := s.UpdateScanProgress(ctx, id, 150, 120, 10, 3); err != nil {
		t.Fatalf("UpdateScanProgress: %v", err)
	}
	if err := s.CompleteScanRecord(ctx, id, ScanCompleted, ""); err != nil {
		t.Fatalf("CompleteScanRecord: %v", err)
	}

	rec, err = s.GetScanRecord(ctx, id)
	if err != nil {
		t.Fatalf("GetScanRecord: %v", err)
	}
	if rec.Status != ScanCompleted {
		t.Errorf("status = %s, want completed", rec.Status)
	}
	if rec.Processed != 150 || rec.Added != 120 || rec.Updated != 10 || rec.ItemErrors != 3 {
		t.Errorf("counters = %d/%d/%d/%d, want 150/120/10/3",
			rec.Processed, rec.Added, rec.Updated, rec.ItemErrors)
	}
	if rec.CompletedAt == nil {
		t.Error("CompletedAt not set on terminal record")
	}
}

func TestCompleteScanRecordRejectsRunning(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, Options{})
	ctx := context.Background()

	id, err := s.StartScanRecord(ctx, ScanIncremental)
	if err != nil {
		t.Fatalf("StartScanRecord: %v", err)
	}
	if err := s.CompleteScanRecord(ctx, id, ScanRunning, ""); err == nil {
		t.Error("CompleteScanRecord accepted running as a terminal status")
	}
}

func TestRecentScansNewestFirst(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, Options{})
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		id, err := s.StartScanRecord(ctx, ScanFull)
		if err != nil {
			t.Fatalf("StartScanRecord: %v", err)
		}
		if err := s.CompleteScanRecord(ctx, id, ScanCompleted, ""); err != nil {
			t.Fatalf("CompleteScanRecord: %v", err)
		}
		ids = append(ids, id)
	}

	recent, err := s.RecentScans(ctx, 2)
	if err != nil {
		t.Fatalf("RecentScans: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("got %d records, want 2", len(recent))
	}
	if recent[0].ID != ids[2] {
		t.Errorf("most recent = %s, want %s", recent[0].ID, ids[2])
	}
}

func TestInterruptStaleScans(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, Options{})
	ctx := context.Background()

	stale, err := s.StartScanRecord(ctx, ScanFull)
	if err != nil {
		t.Fatalf("StartScanRecord: %v", err)
	}
	done, err := s.StartScanRecord(ctx, ScanFull)
	if err != nil {
		t.Fatalf("StartScanRecord: %v", err)
	}
	if err := s.CompleteScanRecord(ctx, done, ScanCancelled, ""); err != nil {
		t.Fatalf("CompleteScanRecord: %v", err)
	}

	n, err := s.InterruptStaleScans(ctx)
	if err != nil {
		t.Fatalf("InterruptStaleScans: %v", err)
	}
	if n != 1 {
		t.Errorf("interrupted %d scans, want 1", n)
	}

	rec, err := s.GetScanRecord(ctx, stale)
	if err != nil {
		t.Fatalf("GetScanRecord: %v", err)
	}
	if rec.Status != ScanFailed {
		t.Errorf("stale scan status = %s, want failed", rec.Status)
	}

	rec, err = s.GetScanRecord(ctx, done)
	if err != nil {
		t.Fatalf("GetScanRecord: %v", err)
	}
	if rec.Status != ScanCancelled {
		t.Errorf("terminal record was touched: %s", rec.Status)
	}
}
