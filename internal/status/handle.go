package status

import (
	"context"

	"github.com/JakeFAU/nepjol-importer/internal/nepjol"
)

// RunHandle is the writer side of one run. Updates from a handle whose run
// has been superseded are ignored.
type RunHandle struct {
	tracker *Tracker
	runID   string
	ctx     context.Context
	cancel  context.CancelFunc
	initial Status
}

// RunID identifies the run.
func (h *RunHandle) RunID() string { return h.runID }

// Initial is the record written when the run started.
func (h *RunHandle) Initial() Status { return h.initial }

// Context is canceled when the run is stopped or finished.
func (h *RunHandle) Context() context.Context { return h.ctx }

// Stopped reports whether Stop has been requested.
func (h *RunHandle) Stopped() bool { return h.ctx.Err() != nil }

// Update merges p into the run's record.
func (h *RunHandle) Update(ctx context.Context, p Patch) error {
	now := h.tracker.clock.Now()
	_, err := h.tracker.update(ctx, h.runID, func(st Status) Status {
		return st.Apply(p, now)
	})
	return err
}

// Finish records the final counters and marks the run not running. A run
// whose context was canceled is recorded as cancelled. A non-nil runErr is
// stored as the run's error message.
func (h *RunHandle) Finish(ctx context.Context, stats nepjol.Stats, runErr error) (Status, error) {
	defer h.tracker.release(h)
	defer h.cancel()

	now := h.tracker.clock.Now()
	stopped := h.Stopped()
	return h.tracker.update(ctx, h.runID, func(st Status) Status {
		st.IsRunning = false
		st.Cancelled = st.Cancelled || stopped
		st.FinishedAt = &now
		st.Stats = stats
		st.EstimatedTimeRemaining = nil
		st.CurrentArticle = ""
		if runErr != nil {
			st.Error = runErr.Error()
		}
		st.LastUpdate = now
		return st
	})
}
