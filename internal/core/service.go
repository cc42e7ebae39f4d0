package core

// service.go coordinates conversion runs. Each run moves through reading,
// transforming and encoding phases in a background goroutine while handlers
// poll or subscribe for progress. Finished runs stay in memory for a short
// window; longer history lives in the Store when one is configured.

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/stagepipe/omcbridge/internal/omc"
	"github.com/stagepipe/omcbridge/internal/validator"
)

// DefaultConversionTimeout is the per-run deadline when none is configured.
const DefaultConversionTimeout = 10 * time.Minute

// MaxFileSize is the largest source export the converter accepts.
const MaxFileSize int64 = 100 * 1024 * 1024 // 100MB

// ContextCheckInterval is how often to check for context cancellation.
const ContextCheckInterval = 100

// progressInterval is how often row progress is pushed to listeners.
const progressInterval = 50

// resultRetention is how long finished runs stay queryable in memory.
const resultRetention = 5 * time.Minute

// persistTimeout bounds the store writes that record a finished run.
const persistTimeout = 10 * time.Second

// ServiceConfig carries the conversion knobs wired from the environment.
// Zero values fall back to the package defaults.
type ServiceConfig struct {
	MaxConcurrent int           // parallel run limit
	SlotWait      time.Duration // how long StartConversion waits for a free slot
	Timeout       time.Duration // per-run deadline
	ExportDir     string        // directory for exported documents, empty disables export
	DefaultPolicy RawCopyPolicy // raw-copy policy when the request does not name one
}

// Service provides the core business logic for conversion runs.
type Service struct {
	store   *Store
	checker *validator.Client
	limiter *ConversionLimiter
	config  ServiceConfig

	mu   sync.RWMutex
	runs map[string]*activeRun
}

type activeRun struct {
	ID         string
	FileName   string
	Policy     RawCopyPolicy
	Cancel     context.CancelFunc
	Progress   ConversionProgress
	Result     *ConversionResult
	Document   []byte
	Done       chan struct{}
	Listeners  []chan ConversionProgress
	ListenerMu sync.Mutex
	CreatedAt  time.Time
}

// NewService creates a new Service instance. store may be nil when run
// persistence is disabled; checker may be nil when no schema checker is
// configured.
func NewService(store *Store, checker *validator.Client, cfg ServiceConfig) (*Service, error) {
	if cfg.DefaultPolicy == "" {
		cfg.DefaultPolicy = RawCopyVerbatim
	}
	if _, err := ParseRawCopyPolicy(string(cfg.DefaultPolicy)); err != nil {
		return nil, err
	}

	if cfg.ExportDir != "" {
		if err := os.MkdirAll(cfg.ExportDir, 0o755); err != nil {
			return nil, fmt.Errorf("create export directory: %w", err)
		}
	}

	return &Service{
		store:   store,
		checker: checker,
		limiter: NewConversionLimiter(cfg.MaxConcurrent, cfg.SlotWait),
		config:  cfg,
		runs:    make(map[string]*activeRun),
	}, nil
}

// ConversionTimeout returns the per-run deadline.
func (s *Service) ConversionTimeout() time.Duration {
	if s.config.Timeout > 0 {
		return s.config.Timeout
	}
	return DefaultConversionTimeout
}

// DefaultPolicy returns the raw-copy policy used when a request names none.
func (s *Service) DefaultPolicy() RawCopyPolicy {
	return s.config.DefaultPolicy
}

// StartConversion begins an asynchronous conversion run over the given
// source. Returns the run ID immediately. Use SubscribeProgress or
// GetRunProgress to follow it and GetRunResult to collect the outcome.
//
// Returns ErrTooManyConversions if the concurrent run limit is reached and
// no slot becomes available within the wait window.
func (s *Service) StartConversion(ctx context.Context, fileName string, src io.Reader, size int64, policy RawCopyPolicy) (string, error) {
	if policy == "" {
		policy = s.config.DefaultPolicy
	}
	if _, err := ParseRawCopyPolicy(string(policy)); err != nil {
		return "", err
	}
	if size > MaxFileSize {
		return "", fmt.Errorf("file too large: %s exceeds the %s limit",
			humanize.Bytes(uint64(size)), humanize.Bytes(uint64(MaxFileSize)))
	}

	// Acquire run slot (blocks until available or timeout)
	if err := s.limiter.Acquire(ctx); err != nil {
		return "", err
	}

	runID := uuid.New().String()

	// The run outlives the request, so its context hangs off Background.
	// Request identity is carried over for audit logging.
	runCtx, cancel := context.WithTimeout(context.Background(), s.ConversionTimeout())
	runCtx = ContextWithClientIP(runCtx, ClientIPFromContext(ctx))
	runCtx = ContextWithUserAgent(runCtx, UserAgentFromContext(ctx))

	run := &activeRun{
		ID:       runID,
		FileName: fileName,
		Policy:   policy,
		Cancel:   cancel,
		Progress: ConversionProgress{
			RunID:      runID,
			Phase:      PhaseStarting,
			FileName:   fileName,
			BytesTotal: size,
		},
		Done:      make(chan struct{}),
		Listeners: make([]chan ConversionProgress, 0),
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.runs[runID] = run
	s.mu.Unlock()

	// Process in background. Panic recovery lives inside the run so the
	// listeners and Done channel are torn down exactly once.
	go func() {
		defer s.limiter.Release()
		s.processConversion(runCtx, run, src, size)
	}()

	return runID, nil
}

// processConversion drives one run through its phases: read and sanitize the
// source, locate the task table, transform rows, encode the document and
// optionally export it. A terminal result is always set before Done closes.
func (s *Service) processConversion(ctx context.Context, run *activeRun, src io.Reader, size int64) {
	startTime := time.Now()

	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in conversion",
				"run_id", run.ID,
				"file", run.FileName,
				"panic", r,
			)
			run.Progress.Phase = PhaseFailed
			run.Progress.Error = fmt.Sprintf("internal error: %v", r)
			run.notifyProgress()
			if run.Result == nil {
				run.Result = &ConversionResult{
					RunID:      run.ID,
					FileName:   run.FileName,
					Policy:     run.Policy,
					Error:      run.Progress.Error,
					Duration:   time.Since(startTime),
					DurationMs: time.Since(startTime).Milliseconds(),
				}
			}
		}
		run.Cancel()
		run.closeListeners()
		close(run.Done)
		s.cleanup(run.ID, resultRetention)
	}()

	fail := func(phase ConversionPhase, err error) {
		run.Progress.Phase = phase
		run.Progress.Error = err.Error()
		run.notifyProgress()
		run.Result = &ConversionResult{
			RunID:      run.ID,
			FileName:   run.FileName,
			Policy:     run.Policy,
			TotalRows:  run.Progress.TotalRows,
			Converted:  run.Progress.Converted,
			Skipped:    run.Progress.Skipped,
			Error:      err.Error(),
			Duration:   time.Since(startTime),
			DurationMs: time.Since(startTime).Milliseconds(),
		}
		s.persistRun(ctx, run, run.Result)
	}

	// cancelled distinguishes a user cancel from the run deadline.
	cancelled := func() bool {
		err := ctx.Err()
		if err == nil {
			return false
		}
		if errors.Is(err, context.Canceled) {
			fail(PhaseCancelled, errors.New("conversion cancelled"))
		} else {
			fail(PhaseFailed, fmt.Errorf("conversion timed out: %w", err))
		}
		return true
	}

	run.Progress.Phase = PhaseReading
	run.notifyProgress()

	data, err := s.readSource(ctx, run, src, size)
	if err != nil {
		if cancelled() {
			return
		}
		fail(PhaseFailed, err)
		return
	}

	parsed, err := ParseSource(data)
	if err != nil {
		fail(PhaseFailed, err)
		return
	}

	run.Progress.Phase = PhaseTransforming
	run.Progress.TotalRows = len(parsed.Rows)
	run.notifyProgress()

	entities := make([]omc.Entity, 0, len(parsed.Rows))
	skipped := 0
	for i, row := range parsed.Rows {
		// Check for cancellation periodically
		if i%ContextCheckInterval == 0 && cancelled() {
			return
		}

		if !row.HasID {
			// Rows without a usable id are skipped, not failed.
			skipped++
		} else {
			entities = append(entities, TransformRow(row.Task, run.Policy))
		}

		run.Progress.CurrentRow = i + 1
		run.Progress.Converted = len(entities)
		run.Progress.Skipped = skipped
		if (i+1)%progressInterval == 0 {
			run.notifyProgress()
		}
	}
	run.notifyProgress()

	run.Progress.Phase = PhaseEncoding
	run.notifyProgress()

	if cancelled() {
		return
	}

	document, err := omc.Document(entities).Encode()
	if err != nil {
		fail(PhaseFailed, fmt.Errorf("encode document: %w", err))
		return
	}
	run.Document = document

	var exportPath string
	if s.config.ExportDir != "" {
		exportPath = filepath.Join(s.config.ExportDir, ExportFileName(run.FileName))
		tmp := exportPath + ".tmp"
		err := os.WriteFile(tmp, document, 0o644)
		if err == nil {
			err = os.Rename(tmp, exportPath)
		}
		if err != nil {
			os.Remove(tmp)
			// The document encoded fine; only the destination failed. It
			// stays downloadable from memory.
			fail(PhaseFailed, fmt.Errorf("write document to %q: %w", exportPath, err))
			return
		}
	}

	result := &ConversionResult{
		RunID:       run.ID,
		FileName:    run.FileName,
		Policy:      run.Policy,
		TotalRows:   len(parsed.Rows),
		Converted:   len(entities),
		Skipped:     skipped,
		Stats:       TallyStats(entities),
		OutputBytes: int64(len(document)),
		OutputSize:  humanize.Bytes(uint64(len(document))),
		ExportPath:  exportPath,
		Duration:    time.Since(startTime),
	}
	result.DurationMs = result.Duration.Milliseconds()
	run.Result = result

	run.Progress.Phase = PhaseComplete
	run.Progress.CurrentRow = result.TotalRows
	run.notifyProgress()

	s.persistRun(ctx, run, result)

	slog.Info("conversion complete",
		"run_id", run.ID,
		"file", run.FileName,
		"converted", result.Converted,
		"skipped", result.Skipped,
		"output", result.OutputSize,
		"duration_ms", result.DurationMs,
	)
}

// readSource drains the source into memory, pushing byte progress as chunks
// arrive. The reader stack strips a UTF-8 BOM and replaces invalid sequences
// before the bytes are buffered.
func (s *Service) readSource(ctx context.Context, run *activeRun, src io.Reader, size int64) ([]byte, error) {
	reader, counter := WrapSource(src, size)

	var buf bytes.Buffer
	if size > 0 && size <= MaxFileSize {
		buf.Grow(int(size))
	}

	chunk := make([]byte, 64*1024)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		n, err := reader.Read(chunk)
		if n > 0 {
			if int64(buf.Len()+n) > MaxFileSize {
				return nil, fmt.Errorf("file too large: exceeds the %s limit", humanize.Bytes(uint64(MaxFileSize)))
			}
			buf.Write(chunk[:n])
			run.Progress.BytesRead = counter.BytesRead()
			run.notifyProgress()
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read source: %w", err)
		}
	}

	return buf.Bytes(), nil
}

// persistRun records a terminal run in the store. Failures are logged, not
// surfaced: the in-memory result is already complete.
func (s *Service) persistRun(ctx context.Context, run *activeRun, result *ConversionResult) {
	if s.store == nil {
		return
	}

	// The run context may already be cancelled or past its deadline, so the
	// store writes get their own.
	dbCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	rec := &ConversionRun{
		ID:          run.ID,
		FileName:    run.FileName,
		Policy:      run.Policy,
		Phase:       run.Progress.Phase,
		TotalRows:   result.TotalRows,
		Converted:   result.Converted,
		Skipped:     result.Skipped,
		OutputBytes: result.OutputBytes,
		ExportPath:  result.ExportPath,
		DurationMs:  result.DurationMs,
		Error:       result.Error,
		Document:    run.Document,
		CreatedAt:   run.CreatedAt,
	}
	if run.Progress.Phase == PhaseComplete {
		rec.Stats = &result.Stats
	}

	if err := s.store.InsertRun(dbCtx, rec); err != nil {
		slog.Error("persist conversion run", "run_id", run.ID, "error", err)
		return
	}

	s.LogAudit(dbCtx, AuditLogParams{
		Action:       ActionConvert,
		RunID:        run.ID,
		FileName:     run.FileName,
		Detail:       fmt.Sprintf("phase %s, %d converted, %d skipped", run.Progress.Phase, result.Converted, result.Skipped),
		RowsAffected: result.Converted,
	})
}

// SubscribeProgress returns a channel that receives progress updates. The
// channel is closed when the run completes. If the run already finished, the
// immediate snapshot carries the terminal phase and nothing further arrives.
func (s *Service) SubscribeProgress(runID string) (<-chan ConversionProgress, error) {
	s.mu.RLock()
	run, ok := s.runs[runID]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	ch := make(chan ConversionProgress, 10)

	run.ListenerMu.Lock()
	run.Listeners = append(run.Listeners, ch)
	// Send current progress immediately
	select {
	case ch <- run.Progress:
	default:
	}
	run.ListenerMu.Unlock()

	return ch, nil
}

// CancelRun cancels an in-progress conversion run.
func (s *Service) CancelRun(ctx context.Context, runID string) error {
	s.mu.RLock()
	run, ok := s.runs[runID]
	s.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	run.Cancel()

	s.LogAudit(ctx, AuditLogParams{
		Action:   ActionConvertCancel,
		RunID:    runID,
		FileName: run.FileName,
	})

	return nil
}

// GetRunResult returns the result of a completed run.
// Blocks until the run completes if still in progress.
func (s *Service) GetRunResult(runID string) (*ConversionResult, error) {
	s.mu.RLock()
	run, ok := s.runs[runID]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	// Wait for completion
	<-run.Done

	return run.Result, nil
}

// GetRunProgress returns the current progress without blocking.
func (s *Service) GetRunProgress(runID string) (ConversionProgress, error) {
	s.mu.RLock()
	run, ok := s.runs[runID]
	s.mu.RUnlock()

	if !ok {
		return ConversionProgress{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	return run.Progress, nil
}

// GetRunDocument returns the encoded document for a finished run along with
// its download name. Runs no longer tracked in memory are served from the
// store.
func (s *Service) GetRunDocument(ctx context.Context, runID string) ([]byte, string, error) {
	s.mu.RLock()
	run, ok := s.runs[runID]
	s.mu.RUnlock()

	if ok {
		select {
		case <-run.Done:
		default:
			return nil, "", fmt.Errorf("conversion still running: %s", runID)
		}
		if len(run.Document) == 0 {
			return nil, "", fmt.Errorf("run %s produced no document", runID)
		}
		return run.Document, ExportFileName(run.FileName), nil
	}

	if s.store == nil {
		return nil, "", fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	rec, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return nil, "", err
	}
	if len(rec.Document) == 0 {
		return nil, "", fmt.Errorf("run %s produced no document", runID)
	}
	return rec.Document, ExportFileName(rec.FileName), nil
}

// VerifyRun submits a finished run's document to the schema checker and
// records the classified outcome. The document is sent exactly as encoded,
// byte for byte.
func (s *Service) VerifyRun(ctx context.Context, runID string) (*VerificationResult, error) {
	if s.checker == nil {
		return nil, errors.New("schema checker not configured")
	}

	document, name, err := s.GetRunDocument(ctx, runID)
	if err != nil {
		return nil, err
	}

	outcome, report, err := s.checker.Check(ctx, name, document)
	if err != nil {
		return nil, err
	}

	result := &VerificationResult{
		Outcome:   string(outcome),
		Report:    report,
		CheckedAt: time.Now().UTC(),
	}

	if s.store != nil {
		if err := s.store.RecordVerification(ctx, runID, result); err != nil {
			slog.Error("record verification", "run_id", runID, "error", err)
		}
	}

	s.LogAudit(ctx, AuditLogParams{
		Action:   ActionVerify,
		RunID:    runID,
		FileName: name,
		Detail:   "outcome " + result.Outcome,
	})

	return result, nil
}

// ListRuns returns recent conversion runs from the store, newest first.
func (s *Service) ListRuns(ctx context.Context, limit, offset int) ([]ConversionRun, error) {
	if s.store == nil {
		return []ConversionRun{}, nil
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return s.store.ListRuns(ctx, limit, offset)
}

// GetRunRecord returns a persisted run by ID.
func (s *Service) GetRunRecord(ctx context.Context, runID string) (*ConversionRun, error) {
	if s.store == nil {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return s.store.GetRun(ctx, runID)
}

// ServiceStatus is a snapshot of the converter for the status endpoint.
type ServiceStatus struct {
	ActiveRuns   int           `json:"activeRuns"`
	TrackedRuns  int           `json:"trackedRuns"`
	Limiter      LimiterStatus `json:"limiter"`
	Persistence  bool          `json:"persistence"`
	Verification bool          `json:"verification"`
	ExportDir    string        `json:"exportDir,omitempty"`
}

// Status reports converter occupancy and which optional subsystems are wired.
func (s *Service) Status() ServiceStatus {
	s.mu.RLock()
	tracked := len(s.runs)
	s.mu.RUnlock()

	return ServiceStatus{
		ActiveRuns:   s.limiter.ActiveCount(),
		TrackedRuns:  tracked,
		Limiter:      s.limiter.Status(),
		Persistence:  s.store != nil,
		Verification: s.checker != nil,
		ExportDir:    s.config.ExportDir,
	}
}

// WaitForDrain blocks until in-flight conversions finish or the context
// ends. Used during graceful shutdown.
func (s *Service) WaitForDrain(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

// notifyProgress sends progress updates to all listeners.
func (run *activeRun) notifyProgress() {
	run.ListenerMu.Lock()
	defer run.ListenerMu.Unlock()

	for _, ch := range run.Listeners {
		select {
		case ch <- run.Progress:
		default:
			// Listener is slow, skip this update
		}
	}
}

// closeListeners closes all listener channels.
func (run *activeRun) closeListeners() {
	run.ListenerMu.Lock()
	defer run.ListenerMu.Unlock()

	for _, ch := range run.Listeners {
		close(ch)
	}
	run.Listeners = nil
}

// cleanup removes the run from tracking after a delay.
func (s *Service) cleanup(runID string, delay time.Duration) {
	time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.runs, runID)
		s.mu.Unlock()
	})
}

// ExportFileName derives the document download name from the source file
// name: "shot_tasks.csv" becomes "shot_tasks_omc.json".
func ExportFileName(source string) string {
	base := filepath.Base(source)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" || stem == "." || stem == "/" {
		stem = "tasks"
	}
	return stem + "_omc.json"
}
