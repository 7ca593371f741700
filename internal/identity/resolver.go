// Package identity decides whether a scraped journal, issue or author already
// exists in the catalog, creating it when it does not.
//
// Resolution is deterministic: with an unchanged catalog, resolving the same
// input twice returns the same record and creates at most one. Publications
// are not resolved here because their only key, the DOI, is optional.
package identity

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"go.uber.org/zap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/JakeFAU/nepjol-importer/internal/nepjol"
)

// ErrEmptyName is returned when an author carries no usable name.
var ErrEmptyName = errors.New("author name is empty")

// SuffixSource yields short random tokens used to keep generated placeholder
// emails distinct.
type SuffixSource interface {
	NewSuffix() (string, error)
}

// Config controls defaults applied to created records.
type Config struct {
	// InstitutionName is the affiliation used when an author has none.
	InstitutionName string
}

// Resolver implements create-or-find over a nepjol.Catalog.
type Resolver struct {
	catalog  nepjol.Catalog
	clock    nepjol.Clock
	suffixes SuffixSource
	cfg      Config
	logger   *zap.Logger
}

// New constructs a Resolver. suffixes may be nil.
func New(catalog nepjol.Catalog, clock nepjol.Clock, suffixes SuffixSource, cfg Config, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		catalog:  catalog,
		clock:    clock,
		suffixes: suffixes,
		cfg:      cfg,
		logger:   logger.Named("identity"),
	}
}

// LookupJournal reports whether a journal with the given title exists.
func (r *Resolver) LookupJournal(ctx context.Context, title string) (nepjol.Journal, bool, error) {
	journal, err := r.catalog.FindJournalByTitle(ctx, nepjol.Truncate(title, nepjol.MaxJournalTitle))
	switch {
	case err == nil:
		return journal, true, nil
	case errors.Is(err, nepjol.ErrNotFound):
		return nepjol.Journal{}, false, nil
	default:
		return nepjol.Journal{}, false, fmt.Errorf("find journal: %w", err)
	}
}

// ResolveJournal returns the journal matching listing.Name case-insensitively,
// creating it from listing and detail when absent. Existing journals are
// returned unchanged.
func (r *Resolver) ResolveJournal(ctx context.Context, listing nepjol.JournalListing, detail nepjol.JournalDetail) (nepjol.Journal, bool, error) {
	title := nepjol.Truncate(listing.Name, nepjol.MaxJournalTitle)
	if title == "" {
		return nepjol.Journal{}, false, errors.New("journal title is empty")
	}
	existing, found, err := r.LookupJournal(ctx, title)
	if err != nil {
		return nepjol.Journal{}, false, err
	}
	if found {
		return existing, false, nil
	}

	description := nepjol.Truncate(detail.Description, nepjol.MaxJournalDesc)
	if description == "" {
		description = nepjol.DefaultJournalDesc
	}
	created, err := r.catalog.CreateJournal(ctx, nepjol.Journal{
		Title:       title,
		Description: description,
		ISSN:        nepjol.Truncate(detail.ISSN, nepjol.MaxISSN),
		WebsiteURL:  listing.URL,
		Publisher:   nepjol.DefaultPublisher,
		Language:    nepjol.DefaultLanguage,
		OpenAccess:  true,
		Active:      true,
		CreatedAt:   r.clock.Now(),
	})
	if err != nil {
		return nepjol.Journal{}, false, fmt.Errorf("create journal: %w", err)
	}
	r.logger.Info("journal created", zap.Int64("journal_id", created.ID), zap.String("title", created.Title))
	return created, true, nil
}

// ResolveIssue returns the issue keyed by (journal, volume, number) derived
// from listing, creating it when absent.
func (r *Resolver) ResolveIssue(ctx context.Context, journal nepjol.Journal, listing nepjol.IssueListing) (nepjol.Issue, bool, error) {
	key := DeriveIssueKey(listing, r.clock.Now())
	existing, err := r.catalog.FindIssue(ctx, journal.ID, key.Volume, key.Number)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, nepjol.ErrNotFound) {
		return nepjol.Issue{}, false, fmt.Errorf("find issue: %w", err)
	}

	title := nepjol.Truncate(listing.Title, nepjol.MaxIssueTitle)
	if title == "" {
		title = fmt.Sprintf("Vol. %d No. %d", key.Volume, key.Number)
	}
	created, err := r.catalog.CreateIssue(ctx, nepjol.Issue{
		JournalID:       journal.ID,
		Volume:          key.Volume,
		Number:          key.Number,
		Title:           title,
		PublicationDate: key.PublicationDate,
		Status:          nepjol.IssueStatusPublished,
	})
	if err != nil {
		return nepjol.Issue{}, false, fmt.Errorf("create issue: %w", err)
	}
	r.logger.Debug("issue created",
		zap.Int64("journal_id", journal.ID),
		zap.Int("volume", key.Volume),
		zap.Int("number", key.Number))
	return created, true, nil
}

// ResolveAuthor matches by ORCID, then by case-insensitive whitespace
// normalized name, and otherwise creates a new author with a placeholder
// owner account. A name match without an ORCID on record is backfilled with
// the incoming ORCID.
func (r *Resolver) ResolveAuthor(ctx context.Context, in nepjol.ArticleAuthor) (nepjol.Author, bool, error) {
	name := nepjol.NormalizeSpace(in.Name)
	if name == "" {
		return nepjol.Author{}, false, ErrEmptyName
	}
	orcid := strings.TrimSpace(in.ORCID)

	if orcid != "" {
		author, err := r.catalog.FindAuthorByORCID(ctx, orcid)
		if err == nil {
			return author, false, nil
		}
		if !errors.Is(err, nepjol.ErrNotFound) {
			return nepjol.Author{}, false, fmt.Errorf("find author by orcid: %w", err)
		}
	}

	author, err := r.catalog.FindAuthorByName(ctx, name)
	switch {
	case err == nil:
		if orcid != "" && author.ORCID == "" {
			if err := r.catalog.SetAuthorORCID(ctx, author.ID, orcid); err != nil {
				return nepjol.Author{}, false, fmt.Errorf("backfill orcid: %w", err)
			}
			author.ORCID = orcid
		}
		return author, false, nil
	case !errors.Is(err, nepjol.ErrNotFound):
		return nepjol.Author{}, false, fmt.Errorf("find author by name: %w", err)
	}

	email, err := r.placeholderEmail(name)
	if err != nil {
		return nepjol.Author{}, false, err
	}
	user, err := r.catalog.CreateUserPlaceholder(ctx, email, nepjol.PlaceholderUserType, false)
	if err != nil {
		return nepjol.Author{}, false, fmt.Errorf("create placeholder user: %w", err)
	}
	affiliation := strings.TrimSpace(in.Affiliation)
	if affiliation == "" {
		affiliation = r.cfg.InstitutionName
	}
	created, err := r.catalog.CreateAuthor(ctx, nepjol.Author{
		UserID:      user.ID,
		Name:        name,
		Affiliation: affiliation,
		Designation: nepjol.ImportedDesignation,
		Title:       nepjol.ImportedAuthorTitle,
		ORCID:       orcid,
	})
	if err != nil {
		return nepjol.Author{}, false, fmt.Errorf("create author: %w", err)
	}
	return created, true, nil
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// foldAccents strips combining marks so "Dévkota" slugs as "devkota".
func foldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return folded
}

func (r *Resolver) placeholderEmail(name string) (string, error) {
	slug := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(foldAccents(name)), "."), ".")
	if slug == "" {
		slug = "author"
	}
	if r.suffixes != nil {
		suffix, err := r.suffixes.NewSuffix()
		if err != nil {
			return "", fmt.Errorf("placeholder email: %w", err)
		}
		slug += "." + suffix
	}
	return slug + "@" + nepjol.PlaceholderEmailHost, nil
}
