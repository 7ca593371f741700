package status

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/nepjol-importer/internal/nepjol"
)

// ErrRunInProgress rejects a start while another run is marked running.
var ErrRunInProgress = errors.New("an import run is already in progress")

// Store persists the single status record.
type Store interface {
	// Load returns the stored record, or the zero Status when none exists or
	// it has expired.
	Load(ctx context.Context) (Status, error)
	// Save replaces the stored record.
	Save(ctx context.Context, st Status) error
	// SaveIfIdle stores st only when the current record is absent, expired or
	// not running, and reports whether it did.
	SaveIfIdle(ctx context.Context, st Status) (bool, error)
}

// Tracker owns run start, stop and status reads. Its mutex makes the
// running check and the write of the new record one step within a process;
// Store.SaveIfIdle extends that across processes sharing a store.
//
// A stopped run keeps its slot in this process until its handle finishes, so
// a new run never overlaps the tail of a stopped one here. Another process
// sharing the store only sees is_running and may start during that tail.
type Tracker struct {
	mu     sync.Mutex
	store  Store
	clock  nepjol.Clock
	ids    nepjol.IDGenerator
	active *RunHandle
	logger *zap.Logger
}

// NewTracker constructs a Tracker.
func NewTracker(store Store, clock nepjol.Clock, ids nepjol.IDGenerator, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		store:  store,
		clock:  clock,
		ids:    ids,
		logger: logger.Named("status"),
	}
}

// Start resets the status record for a new run. The returned handle's
// context derives from parent and is canceled by Stop.
func (t *Tracker) Start(parent context.Context, opts nepjol.RunOptions) (*RunHandle, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	current, err := t.store.Load(parent)
	if err != nil {
		return nil, fmt.Errorf("load status: %w", err)
	}
	if current.IsRunning || t.active != nil {
		return nil, ErrRunInProgress
	}

	runID, err := t.ids.NewID()
	if err != nil {
		return nil, fmt.Errorf("generate run id: %w", err)
	}
	now := t.clock.Now()
	fresh := Status{
		RunID:      runID,
		IsRunning:  true,
		StartedAt:  &now,
		Options:    opts,
		LastUpdate: now,
	}
	ok, err := t.store.SaveIfIdle(parent, fresh)
	if err != nil {
		return nil, fmt.Errorf("save status: %w", err)
	}
	if !ok {
		return nil, ErrRunInProgress
	}

	ctx, cancel := context.WithCancel(parent)
	handle := &RunHandle{tracker: t, runID: runID, ctx: ctx, cancel: cancel, initial: fresh}
	t.active = handle
	t.logger.Info("run started", zap.String("run_id", runID))
	return handle, nil
}

// Status returns the latest record.
func (t *Tracker) Status(ctx context.Context) (Status, error) {
	st, err := t.store.Load(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("load status: %w", err)
	}
	return st, nil
}

// Stop marks the current run as no longer running and cancels its context.
// Stats are left as they are; the run stops at its next checkpoint.
// Stopping when nothing runs returns the record unchanged.
func (t *Tracker) Stop(ctx context.Context) (Status, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	st, err := t.store.Load(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("load status: %w", err)
	}
	if !st.IsRunning {
		return st, nil
	}
	st.IsRunning = false
	st.Cancelled = true
	st.LastUpdate = t.clock.Now()
	if err := t.store.Save(ctx, st); err != nil {
		return Status{}, fmt.Errorf("save status: %w", err)
	}
	if t.active != nil && t.active.runID == st.RunID {
		t.active.cancel()
	}
	t.logger.Info("run stop requested", zap.String("run_id", st.RunID))
	return st, nil
}

func (t *Tracker) update(ctx context.Context, runID string, mutate func(Status) Status) (Status, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	st, err := t.store.Load(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("load status: %w", err)
	}
	if st.RunID != runID {
		return st, nil
	}
	st = mutate(st)
	if err := t.store.Save(ctx, st); err != nil {
		return Status{}, fmt.Errorf("save status: %w", err)
	}
	return st, nil
}

func (t *Tracker) release(h *RunHandle) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active == h {
		t.active = nil
	}
}
