package scanner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"photovault/internal/exifmeta"
	"photovault/internal/logging"
	"photovault/internal/mediasource"
	"photovault/internal/metrics"
	"photovault/internal/store"
	"photovault/internal/workers"
)

// Sentinel errors.
var (
	// ErrPermissionDenied means the media-library permission is not
	// granted; no scan state is created.
	ErrPermissionDenied = errors.New("scanner: media library permission denied")

	// ErrScanActive rejects starting a scan while one is running.
	ErrScanActive = errors.New("scanner: a scan is already in progress")
)

// State is the scanner lifecycle state.
type State string

const (
	// StateIdle means no scan has run yet or the last one finished.
	StateIdle State = "idle"
	// StateScanning means a scan is in progress.
	StateScanning State = "scanning"
	// StateCompleted means the last scan finished normally.
	StateCompleted State = "completed"
	// StateFailed means the last scan aborted or blew the error budget.
	StateFailed State = "failed"
	// StateCancelled means the last scan was cancelled.
	StateCancelled State = "cancelled"
)

// Options tunes a scan run. Zero values pick defaults.
type Options struct {
	// BatchSize is the enumeration page size.
	BatchSize int
	// BatchDelay is the pause between batches so indexing does not starve
	// other work.
	BatchDelay time.Duration
	// MaxErrorRate is the fraction of per-item errors (over processed
	// items) above which a finished scan is marked failed instead of
	// completed. Tunable default, not a hard law.
	MaxErrorRate float64
	// MaxFileSize skips items larger than this many bytes. Zero means no
	// limit.
	MaxFileSize int64
	// PrivacyLevel controls metadata sanitization during extraction.
	PrivacyLevel exifmeta.PrivacyLevel
	// DetailWorkers bounds concurrent GetItemDetail calls per batch. Zero
	// sizes from the host's I/O worker heuristic.
	DetailWorkers int
}

func (o *Options) applyDefaults() {
	if o.BatchSize <= 0 {
		o.BatchSize = 100
	}
	if o.BatchDelay < 0 {
		o.BatchDelay = 0
	}
	if o.MaxErrorRate <= 0 || o.MaxErrorRate > 1 {
		o.MaxErrorRate = 0.5
	}
	if o.PrivacyLevel == "" {
		o.PrivacyLevel = exifmeta.PrivacyStandard
	}
	if o.DetailWorkers <= 0 {
		o.DetailWorkers = workers.ForIO(8)
	}
}

// Progress is one progress report, emitted after every batch.
type Progress struct {
	ScanID           string        `json:"scanId"`
	TotalEstimate    int           `json:"totalEstimate"`
	Processed        int           `json:"processed"`
	Added            int           `json:"added"`
	Updated          int           `json:"updated"`
	Skipped          int           `json:"skipped"`
	ItemErrors       int           `json:"itemErrors"`
	CurrentItemLabel string        `json:"currentItemLabel"`
	ETA              time.Duration `json:"etaMs"`
}

// ItemError records one non-fatal per-item failure.
type ItemError struct {
	ItemID string `json:"itemId"`
	Stage  string `json:"stage"` // "detail", "write"
	Err    error  `json:"-"`
}

func (e ItemError) Error() string {
	return fmt.Sprintf("scanner: item %s failed at %s: %v", e.ItemID, e.Stage, e.Err)
}

// Result summarizes one finished scan run.
type Result struct {
	RecordID   string           `json:"recordId"`
	ScanType   store.ScanType   `json:"scanType"`
	Status     store.ScanStatus `json:"status"`
	Processed  int              `json:"processed"`
	Added      int              `json:"added"`
	Updated    int              `json:"updated"`
	Skipped    int              `json:"skipped"`
	ItemErrors []ItemError      `json:"itemErrors,omitempty"`
	Duration   time.Duration    `json:"duration"`
}

// Scanner runs at most one scan at a time against a media provider and a
// store.
type Scanner struct {
	provider mediasource.Provider
	store    *store.Store
	opts     Options

	mu          sync.Mutex
	state       State
	cancelRun   context.CancelFunc
	lastResult  *Result
	subscribers map[int]chan Progress
	nextSubID   int
}

// New creates a Scanner. The same Scanner serves full and incremental
// runs, one at a time.
func New(provider mediasource.Provider, st *store.Store, opts Options) *Scanner {
	opts.applyDefaults()
	return &Scanner{
		provider:    provider,
		store:       st,
		opts:        opts,
		state:       StateIdle,
		subscribers: make(map[int]chan Progress),
	}
}

// State returns the current lifecycle state.
func (s *Scanner) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastResult returns the result of the most recently finished scan, or
// nil when none has finished yet.
func (s *Scanner) LastResult() *Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastResult
}

// Subscribe returns a progress channel and an unsubscribe function. The
// channel is buffered; a slow consumer loses intermediate reports rather
// than stalling the scan.
func (s *Scanner) Subscribe() (<-chan Progress, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSubID
	s.nextSubID++
	ch := make(chan Progress, 16)
	s.subscribers[id] = ch

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if existing, ok := s.subscribers[id]; ok {
			delete(s.subscribers, id)
			close(existing)
		}
	}
}

func (s *Scanner) publish(p Progress) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subscribers {
		select {
		case ch <- p:
		default:
		}
	}
}

// Cancel requests cooperative cancellation of the running scan. It takes
// effect at the next batch boundary; the in-flight item always completes
// so no half-written record is left behind. No-op when idle.
func (s *Scanner) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateScanning && s.cancelRun != nil {
		s.cancelRun()
	}
}

// StartFullScan runs a full library scan and blocks until it finishes.
func (s *Scanner) StartFullScan(ctx context.Context) (*Result, error) {
	return s.run(ctx, store.ScanFull, time.Time{})
}

// StartIncrementalScan scans only items created after the last successful
// scan. A store with no recorded scan falls back to a full pass.
func (s *Scanner) StartIncrementalScan(ctx context.Context) (*Result, error) {
	since, err := s.store.LastScanCompleted(ctx)
	if err != nil {
		return nil, fmt.Errorf("scanner: read last scan time: %w", err)
	}
	if since.IsZero() {
		logging.Info("No previous scan recorded; incremental request runs as full")
		return s.run(ctx, store.ScanFull, time.Time{})
	}
	return s.run(ctx, store.ScanIncremental, since)
}

// acquire transitions Idle -> Scanning, rejecting concurrent runs.
func (s *Scanner) acquire(cancel context.CancelFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateScanning {
		return ErrScanActive
	}
	s.state = StateScanning
	s.cancelRun = cancel
	metrics.ScannerIsRunning.Set(1)
	return nil
}

func (s *Scanner) release(result *Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch result.Status {
	case store.ScanCompleted:
		s.state = StateCompleted
	case store.ScanCancelled:
		s.state = StateCancelled
	default:
		s.state = StateFailed
	}
	s.cancelRun = nil
	s.lastResult = result
	metrics.ScannerIsRunning.Set(0)
}

func (s *Scanner) run(ctx context.Context, scanType store.ScanType, since time.Time) (*Result, error) {
	if status := s.provider.PermissionStatus(); status != mediasource.PermissionGranted {
		return nil, fmt.Errorf("%w (status %s)", ErrPermissionDenied, status)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := s.acquire(cancel); err != nil {
		return nil, err
	}

	start := time.Now()
	filters := mediasource.ListFilters{Since: since}

	recordID, err := s.store.StartScanRecord(ctx, scanType)
	if err != nil {
		s.release(&Result{ScanType: scanType, Status: store.ScanFailed})
		return nil, fmt.Errorf("scanner: create scan record: %w", err)
	}

	estimate, err := s.provider.EstimateCount(runCtx, filters)
	if err != nil {
		logging.Warn("count estimate unavailable: %v", err)
		estimate = 0
	}

	result := &Result{RecordID: recordID, ScanType: scanType}
	runErr := s.scanLoop(runCtx, recordID, filters, estimate, start, result)

	result.Duration = time.Since(start)
	result.Status = s.finalStatus(runCtx, runErr, result)

	// Terminal bookkeeping is written with the parent context: a
	// cancelled run must still persist its counts.
	if err := s.store.UpdateScanProgress(ctx, recordID,
		result.Processed, result.Added, result.Updated, len(result.ItemErrors)); err != nil {
		logging.Error("persist final scan counts: %v", err)
	}
	var message string
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		message = runErr.Error()
	} else if result.Status == store.ScanFailed {
		message = fmt.Sprintf("error rate %d/%d exceeded threshold", len(result.ItemErrors), result.Processed)
	}
	if err := s.store.CompleteScanRecord(ctx, recordID, result.Status, message); err != nil {
		logging.Error("finalize scan record: %v", err)
	}

	if result.Status == store.ScanCompleted {
		// Incremental runs resume from the start of this scan, so items
		// created mid-scan are re-observed next time instead of missed.
		if err := s.store.SetLastScanCompleted(ctx, start); err != nil {
			logging.Error("persist last scan time: %v", err)
		}
	}

	metrics.ScannerRunsTotal.WithLabelValues(string(scanType), string(result.Status)).Inc()
	metrics.ScannerLastRunTimestamp.Set(float64(time.Now().Unix()))
	metrics.ScannerLastRunDuration.Set(result.Duration.Seconds())
	s.release(result)

	logging.Info("Scan %s finished: %s, processed=%d added=%d updated=%d skipped=%d errors=%d in %s",
		recordID, result.Status, result.Processed, result.Added, result.Updated,
		result.Skipped, len(result.ItemErrors), result.Duration.Round(time.Millisecond))

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return result, runErr
	}
	return result, nil
}

// finalStatus maps the loop outcome onto a terminal scan status.
func (s *Scanner) finalStatus(ctx context.Context, runErr error, result *Result) store.ScanStatus {
	switch {
	case errors.Is(runErr, context.Canceled) || ctx.Err() == context.Canceled:
		return store.ScanCancelled
	case runErr != nil:
		return store.ScanFailed
	case result.Processed > 0 &&
		float64(len(result.ItemErrors))/float64(result.Processed) > s.opts.MaxErrorRate:
		return store.ScanFailed
	default:
		return store.ScanCompleted
	}
}

// scanLoop is the batch loop. Cancellation is only honored between
// batches; per-item failures accumulate without aborting.
func (s *Scanner) scanLoop(ctx context.Context, recordID string, filters mediasource.ListFilters,
	estimate int, start time.Time, result *Result) error {

	cursor := ""
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		page, err := s.provider.ListItems(ctx, cursor, s.opts.BatchSize, filters)
		if err != nil {
			return fmt.Errorf("scanner: enumerate batch: %w", err)
		}

		s.processBatch(ctx, page.Items, result)

		if err := s.store.UpdateScanProgress(ctx, recordID,
			result.Processed, result.Added, result.Updated, len(result.ItemErrors)); err != nil {
			logging.Warn("persist scan progress: %v", err)
		}

		label := ""
		if n := len(page.Items); n > 0 {
			label = page.Items[n-1].Filename
		}
		s.publish(Progress{
			ScanID:           recordID,
			TotalEstimate:    estimate,
			Processed:        result.Processed,
			Added:            result.Added,
			Updated:          result.Updated,
			Skipped:          result.Skipped,
			ItemErrors:       len(result.ItemErrors),
			CurrentItemLabel: label,
			ETA:              estimateETA(start, result.Processed, estimate),
		})

		if !page.HasMore {
			return nil
		}
		cursor = page.NextCursor

		if s.opts.BatchDelay > 0 {
			select {
			case <-time.After(s.opts.BatchDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// processBatch fetches details concurrently but applies writes strictly in
// enumeration order.
func (s *Scanner) processBatch(ctx context.Context, refs []mediasource.ItemRef, result *Result) {
	type detail struct {
		desc mediasource.ItemDescriptor
		err  error
	}

	kept := make([]mediasource.ItemRef, 0, len(refs))
	for _, ref := range refs {
		if !mediasource.IsSupported(ref.Filename) {
			result.Skipped++
			continue
		}
		kept = append(kept, ref)
	}

	details := make([]detail, len(kept))
	sem := make(chan struct{}, s.opts.DetailWorkers)
	var wg sync.WaitGroup
	for i, ref := range kept {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			desc, err := s.provider.GetItemDetail(ctx, id)
			details[i] = detail{desc: desc, err: err}
		}(i, ref.ID)
	}
	wg.Wait()

	for i, ref := range kept {
		if details[i].err != nil {
			result.Processed++
			metrics.ScannerItemsProcessed.Inc()
			s.recordItemError(result, ref.ID, "detail", details[i].err)
			continue
		}
		desc := details[i].desc

		if s.opts.MaxFileSize > 0 && desc.FileSize > s.opts.MaxFileSize {
			result.Skipped++
			continue
		}

		result.Processed++
		metrics.ScannerItemsProcessed.Inc()

		write := buildWrite(desc, exifmeta.Extract(desc, s.opts.PrivacyLevel), s.store.DeviceID())
		outcome, err := s.store.SaveItem(ctx, write)
		if err != nil {
			s.recordItemError(result, ref.ID, "write", err)
			continue
		}
		switch outcome {
		case store.WriteInserted:
			result.Added++
		case store.WriteUpdated:
			result.Updated++
		}
	}
}

func (s *Scanner) recordItemError(result *Result, itemID, stage string, err error) {
	itemErr := ItemError{ItemID: itemID, Stage: stage, Err: err}
	result.ItemErrors = append(result.ItemErrors, itemErr)
	metrics.ScannerItemErrors.Inc()
	logging.Warn("%v", itemErr)
}

func estimateETA(start time.Time, processed, estimate int) time.Duration {
	if processed == 0 || estimate <= processed {
		return 0
	}
	perItem := time.Since(start) / time.Duration(processed)
	return perItem * time.Duration(estimate-processed)
}
