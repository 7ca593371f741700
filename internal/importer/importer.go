// Package importer crawls NepJOL and writes journals, issues, authors and
// publications into the catalog.
package importer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/nepjol-importer/internal/identity"
	"github.com/JakeFAU/nepjol-importer/internal/metrics"
	"github.com/JakeFAU/nepjol-importer/internal/nepjol"
	"github.com/JakeFAU/nepjol-importer/internal/parser"
	"github.com/JakeFAU/nepjol-importer/internal/status"
)

const archiveSuffix = "/issue/archive"

// Config controls the crawl entry point and where attachments land.
type Config struct {
	BaseURL    string
	IndexPath  string
	BlobPrefix string
}

// Progress receives partial status updates. *status.RunHandle implements it.
type Progress interface {
	Update(ctx context.Context, p status.Patch) error
}

// Importer runs the journals → issues → articles crawl.
type Importer struct {
	fetcher  nepjol.Fetcher
	catalog  nepjol.Catalog
	resolver *identity.Resolver
	blobs    nepjol.BlobStore
	hasher   nepjol.Hasher
	clock    nepjol.Clock
	cfg      Config
	logger   *zap.Logger
}

// New constructs an Importer. blobs may be nil, which disables attachments.
func New(
	fetcher nepjol.Fetcher,
	catalog nepjol.Catalog,
	resolver *identity.Resolver,
	blobs nepjol.BlobStore,
	hasher nepjol.Hasher,
	clock nepjol.Clock,
	cfg Config,
	logger *zap.Logger,
) *Importer {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Importer{
		fetcher:  fetcher,
		catalog:  catalog,
		resolver: resolver,
		blobs:    blobs,
		hasher:   hasher,
		clock:    clock,
		cfg:      cfg,
		logger:   logger.Named("importer"),
	}
}

// run carries the mutable state of one Run call.
type run struct {
	opts     nepjol.RunOptions
	stats    nepjol.Stats
	progress Progress
}

func (r *run) report(ctx context.Context, im *Importer, p status.Patch) {
	if r.progress == nil {
		return
	}
	p.Stats = status.FullStats(r.stats)
	if err := r.progress.Update(ctx, p); err != nil {
		im.logger.Warn("status update failed", zap.Error(err))
	}
}

// ListJournals fetches and parses the source's journal index.
func (im *Importer) ListJournals(ctx context.Context) ([]nepjol.JournalListing, error) {
	doc, err := im.fetcher.Fetch(ctx, im.cfg.BaseURL+im.cfg.IndexPath)
	if err != nil {
		return nil, fmt.Errorf("fetch journal index: %w", err)
	}
	return parser.ParseJournalList(doc), nil
}

// Run imports every journal allowed by opts. Item failures are counted in the
// returned stats; the error is non-nil only when the journal list is
// unavailable or ctx was canceled before the crawl finished.
func (im *Importer) Run(ctx context.Context, opts nepjol.RunOptions, progress Progress) (nepjol.Stats, error) {
	r := &run{opts: opts, progress: progress}

	journals, err := im.ListJournals(ctx)
	if err != nil {
		im.logger.Error("journal list unavailable", zap.Error(err))
		return r.stats, fmt.Errorf("%w: %w", ErrJournalListEmpty, err)
	}
	if len(journals) == 0 {
		return r.stats, ErrJournalListEmpty
	}
	journals = limitJournals(journals, opts)
	total := len(journals)
	im.logger.Info("import started", zap.Int("journals", total), zap.Bool("test_mode", opts.TestMode))
	r.report(ctx, im, status.Patch{TotalJournals: &total})

	start := im.clock.Now()
	for i, listing := range journals {
		outcome, err := guard(func() (Outcome, error) { return im.importJournal(ctx, r, listing) })
		r.stats.JournalsProcessed++
		im.record("journal", outcome, err, r, zap.String("journal", listing.Name))

		completed := i + 1
		eta := estimateRemaining(im.clock.Now().Sub(start), completed, total)
		r.report(ctx, im, status.Patch{JournalsCompleted: &completed, EstimatedTimeRemaining: &eta})

		if ctx.Err() != nil {
			im.logger.Info("import stopped", zap.Int("journals_completed", completed))
			return r.stats, fmt.Errorf("import stopped: %w", ctx.Err())
		}
	}
	im.logger.Info("import finished", zap.Any("stats", r.stats))
	return r.stats, nil
}

func (im *Importer) importJournal(ctx context.Context, r *run, listing nepjol.JournalListing) (Outcome, error) {
	name := listing.Name
	r.report(ctx, im, status.Patch{CurrentJournal: &name})

	journal, found, err := im.resolver.LookupJournal(ctx, listing.Name)
	if err != nil {
		return OutcomeFailed, err
	}
	outcome := OutcomeMatched
	if !found {
		var detail nepjol.JournalDetail
		if doc, err := im.fetcher.Fetch(ctx, listing.URL); err == nil {
			detail = parser.ParseJournalDetail(doc)
		}
		var created bool
		journal, created, err = im.resolver.ResolveJournal(ctx, listing, detail)
		if err != nil {
			return OutcomeFailed, err
		}
		if created {
			outcome = OutcomeCreated
			r.stats.JournalsCreated++
			im.attachCover(ctx, journal, detail.CoverImageURL)
		}
	}

	issues := im.fetchIssues(ctx, listing.URL)
	if r.opts.TestMode && len(issues) > 1 {
		issues = issues[:1]
	}
	for _, listing := range issues {
		issueOutcome, err := guard(func() (Outcome, error) { return im.importIssue(ctx, r, journal, listing) })
		r.stats.IssuesProcessed++
		im.record("issue", issueOutcome, err, r, zap.String("issue", listing.Title))
		if ctx.Err() != nil {
			break
		}
	}
	return outcome, nil
}

func (im *Importer) fetchIssues(ctx context.Context, journalURL string) []nepjol.IssueListing {
	doc, err := im.fetcher.Fetch(ctx, strings.TrimRight(journalURL, "/")+archiveSuffix)
	if err != nil {
		return nil
	}
	return parser.ParseIssueList(doc)
}

func (im *Importer) importIssue(ctx context.Context, r *run, journal nepjol.Journal, listing nepjol.IssueListing) (Outcome, error) {
	title := listing.Title
	r.report(ctx, im, status.Patch{CurrentIssue: &title})

	issue, created, err := im.resolver.ResolveIssue(ctx, journal, listing)
	if err != nil {
		return OutcomeFailed, err
	}
	outcome := OutcomeMatched
	if created {
		outcome = OutcomeCreated
		r.stats.IssuesCreated++
	}

	var articles []nepjol.ArticleSummary
	if doc, err := im.fetcher.Fetch(ctx, listing.URL); err == nil {
		articles = parser.ParseArticleList(doc)
	}
	if r.opts.MaxArticles > 0 && len(articles) > r.opts.MaxArticles {
		articles = articles[:r.opts.MaxArticles]
	}
	for _, summary := range articles {
		articleOutcome, err := guard(func() (Outcome, error) { return im.importArticle(ctx, r, journal, issue, summary) })
		im.record("publication", articleOutcome, err, r, zap.String("article", summary.Title))
		if ctx.Err() != nil {
			break
		}
	}
	return outcome, nil
}

// record folds one step result into the counters, metrics and log.
func (im *Importer) record(entity string, outcome Outcome, err error, r *run, fields ...zap.Field) {
	metrics.ObserveItem(entity, string(outcome))
	if err == nil {
		return
	}
	r.stats.Errors++
	im.logger.Warn(entity+" import failed", append(fields, zap.Error(err))...)
}

func limitJournals(journals []nepjol.JournalListing, opts nepjol.RunOptions) []nepjol.JournalListing {
	limit := opts.MaxJournals
	if opts.TestMode {
		limit = 1
	}
	if limit > 0 && len(journals) > limit {
		return journals[:limit]
	}
	return journals
}

// estimateRemaining projects the mean time per completed journal over the
// journals still to go, in seconds.
func estimateRemaining(elapsed time.Duration, completed, total int) float64 {
	if completed <= 0 || completed >= total {
		return 0
	}
	perJournal := elapsed.Seconds() / float64(completed)
	return perJournal * float64(total-completed)
}

func isStop(err error) bool {
	return errors.Is(err, context.Canceled)
}
