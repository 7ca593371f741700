package importer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/nepjol-importer/internal/metrics"
	"github.com/JakeFAU/nepjol-importer/internal/nepjol"
	"github.com/JakeFAU/nepjol-importer/internal/status"
)

// Run end states reported in notifications and metrics.
const (
	RunCompleted = "completed"
	RunCancelled = "cancelled"
	RunFailed    = "failed"
)

// RunFinished is published when a run ends.
type RunFinished struct {
	RunID      string       `json:"run_id"`
	Status     string       `json:"status"`
	Stats      nepjol.Stats `json:"stats"`
	Error      string       `json:"error,omitempty"`
	FinishedAt time.Time    `json:"finished_at"`
}

// EventType names the notification for message attributes.
func (RunFinished) EventType() string { return "nepjol.import.finished" }

// Service is the entry point used by the CLI, the HTTP API and the scheduler.
type Service struct {
	importer  *Importer
	tracker   *status.Tracker
	publisher nepjol.Publisher
	topic     string
	clock     nepjol.Clock
	logger    *zap.Logger
	wg        sync.WaitGroup
}

// NewService constructs a Service. publisher may be nil.
func NewService(
	importer *Importer,
	tracker *status.Tracker,
	publisher nepjol.Publisher,
	topic string,
	clock nepjol.Clock,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		importer:  importer,
		tracker:   tracker,
		publisher: publisher,
		topic:     topic,
		clock:     clock,
		logger:    logger.Named("service"),
	}
}

// Start launches a run in the background and returns once the status record
// is initialized. It fails with status.ErrRunInProgress while another run is
// active. The run outlives ctx.
func (s *Service) Start(ctx context.Context, opts nepjol.RunOptions) (status.Status, error) {
	handle, err := s.tracker.Start(context.WithoutCancel(ctx), opts)
	if err != nil {
		return status.Status{}, err
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		_, _ = s.execute(handle, opts)
	}()
	return handle.Initial(), nil
}

// RunSync runs an import on the calling goroutine. Canceling ctx stops it at
// the next checkpoint.
func (s *Service) RunSync(ctx context.Context, opts nepjol.RunOptions) (status.Status, error) {
	handle, err := s.tracker.Start(ctx, opts)
	if err != nil {
		return status.Status{}, err
	}
	return s.execute(handle, opts)
}

// Status returns the latest run status.
func (s *Service) Status(ctx context.Context) (status.Status, error) {
	return s.tracker.Status(ctx)
}

// Stop requests the active run to stop at its next checkpoint.
func (s *Service) Stop(ctx context.Context) (status.Status, error) {
	return s.tracker.Stop(ctx)
}

// ListJournals returns the journals currently listed by the source without
// importing anything.
func (s *Service) ListJournals(ctx context.Context) ([]nepjol.JournalListing, error) {
	return s.importer.ListJournals(ctx)
}

// Wait blocks until background runs have returned.
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) execute(handle *status.RunHandle, opts nepjol.RunOptions) (status.Status, error) {
	metrics.IncActiveRuns()
	defer metrics.DecActiveRuns()

	logger := s.logger.With(zap.String("run_id", handle.RunID()))
	stats, runErr := s.importer.Run(handle.Context(), opts, handle)

	outcome := RunCompleted
	switch {
	case runErr == nil:
	case isStop(runErr):
		outcome = RunCancelled
		runErr = nil
	default:
		outcome = RunFailed
	}
	metrics.ObserveRun(outcome)

	finishCtx := context.WithoutCancel(handle.Context())
	final, err := handle.Finish(finishCtx, stats, runErr)
	if err != nil {
		logger.Error("final status update failed", zap.Error(err))
	}
	logger.Info("run finished",
		zap.String("status", outcome),
		zap.Int("journals_processed", stats.JournalsProcessed),
		zap.Int("publications_created", stats.PublicationsCreated),
		zap.Int("publications_skipped", stats.PublicationsSkipped),
		zap.Int("pdfs_downloaded", stats.PDFsDownloaded),
		zap.Int("errors", stats.Errors))

	s.notify(finishCtx, logger, RunFinished{
		RunID:      handle.RunID(),
		Status:     outcome,
		Stats:      stats,
		Error:      errorText(runErr),
		FinishedAt: s.clock.Now(),
	})

	if runErr != nil {
		return final, fmt.Errorf("import run: %w", runErr)
	}
	if err != nil {
		return final, fmt.Errorf("finish run: %w", err)
	}
	return final, nil
}

func (s *Service) notify(ctx context.Context, logger *zap.Logger, event RunFinished) {
	if s.publisher == nil || s.topic == "" {
		return
	}
	id, err := s.publisher.Publish(ctx, s.topic, event)
	if err != nil {
		logger.Warn("run notification failed", zap.Error(err))
		return
	}
	logger.Debug("run notification published", zap.String("message_id", id))
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
