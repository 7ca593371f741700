package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/nepjol-importer/internal/nepjol"
	"github.com/JakeFAU/nepjol-importer/internal/status"
)

const (
	statusTimeout  = 3 * time.Second
	listingTimeout = 45 * time.Second
)

// ImportService is the subset of importer.Service the handlers need.
type ImportService interface {
	Start(ctx context.Context, opts nepjol.RunOptions) (status.Status, error)
	Status(ctx context.Context) (status.Status, error)
	Stop(ctx context.Context) (status.Status, error)
	ListJournals(ctx context.Context) ([]nepjol.JournalListing, error)
}

// ImportHandler exposes run control and status endpoints.
type ImportHandler struct {
	svc      ImportService
	defaults nepjol.RunOptions
	logger   *zap.Logger
}

// NewImportHandler wires the service. defaults fill fields the caller omits.
func NewImportHandler(svc ImportService, defaults nepjol.RunOptions, logger *zap.Logger) *ImportHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImportHandler{svc: svc, defaults: defaults, logger: logger}
}

type startRequest struct {
	MaxJournals    *int  `json:"max_journals"`
	MaxArticles    *int  `json:"max_articles"`
	SkipDuplicates *bool `json:"skip_duplicates"`
	DownloadPDFs   *bool `json:"download_pdfs"`
	TestMode       *bool `json:"test_mode"`
}

func (req startRequest) options(defaults nepjol.RunOptions) (nepjol.RunOptions, error) {
	opts := nepjol.RunOptions{
		MaxJournals:    valueOrDefault(req.MaxJournals, defaults.MaxJournals),
		MaxArticles:    valueOrDefault(req.MaxArticles, defaults.MaxArticles),
		SkipDuplicates: valueOrDefault(req.SkipDuplicates, defaults.SkipDuplicates),
		DownloadPDFs:   valueOrDefault(req.DownloadPDFs, defaults.DownloadPDFs),
		TestMode:       valueOrDefault(req.TestMode, defaults.TestMode),
	}
	if opts.MaxJournals < 0 || opts.MaxArticles < 0 {
		return nepjol.RunOptions{}, errors.New("limits must be >= 0")
	}
	return opts, nil
}

func valueOrDefault[T any](ptr *T, def T) T {
	if ptr == nil {
		return def
	}
	return *ptr
}

type startResponse struct {
	RunID  string        `json:"run_id"`
	Status status.Status `json:"status"`
}

// Start handles POST /v1/imports. An empty body starts a run with the
// configured defaults. It answers 202 on success and 409 while another run is
// active.
func (h *ImportHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	opts, err := req.options(h.defaults)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	st, err := h.svc.Start(r.Context(), opts)
	if err != nil {
		if errors.Is(err, status.ErrRunInProgress) {
			writeError(w, http.StatusConflict, "an import is already running")
			return
		}
		h.logger.Error("start import failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to start import")
		return
	}
	writeJSON(w, http.StatusAccepted, startResponse{RunID: st.RunID, Status: st})
}

// Status handles GET /v1/imports/status.
func (h *ImportHandler) Status(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), statusTimeout)
	defer cancel()

	st, err := h.svc.Status(ctx)
	if err != nil {
		h.logger.Error("load status failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load status")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// Stop handles POST /v1/imports/stop. The run ends at its next checkpoint;
// counters keep moving until then.
func (h *ImportHandler) Stop(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), statusTimeout)
	defer cancel()

	st, err := h.svc.Stop(ctx)
	if err != nil {
		h.logger.Error("stop import failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to stop import")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// ListJournals handles GET /v1/sources/journals. Failing to reach the source
// is reported as 502.
func (h *ImportHandler) ListJournals(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), listingTimeout)
	defer cancel()

	listings, err := h.svc.ListJournals(ctx)
	if err != nil {
		h.logger.Warn("list source journals failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "failed to fetch journal listing")
		return
	}
	if listings == nil {
		listings = []nepjol.JournalListing{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"journals": listings})
}
