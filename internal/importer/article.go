package importer

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/nepjol-importer/internal/identity"
	"github.com/JakeFAU/nepjol-importer/internal/nepjol"
	"github.com/JakeFAU/nepjol-importer/internal/parser"
	"github.com/JakeFAU/nepjol-importer/internal/status"
)

func (im *Importer) importArticle(
	ctx context.Context,
	r *run,
	journal nepjol.Journal,
	issue nepjol.Issue,
	summary nepjol.ArticleSummary,
) (Outcome, error) {
	title := summary.Title
	r.report(ctx, im, status.Patch{CurrentArticle: &title})

	if skip, err := im.isDuplicate(ctx, r, summary.DOI); err != nil || skip {
		return outcomeFor(skip, r), err
	}

	var detail nepjol.ArticleDetail
	if summary.URL != "" {
		if doc, err := im.fetcher.Fetch(ctx, summary.URL); err == nil {
			detail = parser.ParseArticleDetail(doc)
		}
	}
	merged := mergeArticle(summary, detail)
	if merged.Title == "" {
		return OutcomeFailed, ErrMissingTitle
	}
	if merged.DOI != summary.DOI {
		if skip, err := im.isDuplicate(ctx, r, merged.DOI); err != nil || skip {
			return outcomeFor(skip, r), err
		}
	}
	if len(merged.Authors) == 0 {
		return OutcomeFailed, ErrNoAuthor
	}

	owner, created, err := im.resolver.ResolveAuthor(ctx, merged.Authors[0])
	if err != nil {
		if errors.Is(err, identity.ErrEmptyName) {
			return OutcomeFailed, ErrNoAuthor
		}
		return OutcomeFailed, fmt.Errorf("resolve author: %w", err)
	}
	if created {
		r.stats.AuthorsCreated++
	} else {
		r.stats.AuthorsMatched++
	}

	pub, err := im.catalog.CreatePublication(ctx, buildPublication(merged, journal, issue, owner))
	if err != nil {
		return OutcomeFailed, fmt.Errorf("create publication: %w", err)
	}
	r.stats.PublicationsCreated++

	if r.opts.DownloadPDFs && merged.PDFURL != "" {
		if im.attachPDF(ctx, pub, merged.PDFURL) {
			r.stats.PDFsDownloaded++
		}
	}
	return OutcomeCreated, nil
}

func (im *Importer) isDuplicate(ctx context.Context, r *run, doi string) (bool, error) {
	if !r.opts.SkipDuplicates || strings.TrimSpace(doi) == "" {
		return false, nil
	}
	_, err := im.catalog.FindPublicationByDOI(ctx, nepjol.Truncate(doi, nepjol.MaxDOI))
	switch {
	case err == nil:
		im.logger.Debug("duplicate publication skipped", zap.String("doi", doi))
		return true, nil
	case errors.Is(err, nepjol.ErrNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("find publication: %w", err)
	}
}

func outcomeFor(skip bool, r *run) Outcome {
	if skip {
		r.stats.PublicationsSkipped++
		return OutcomeSkipped
	}
	return OutcomeFailed
}

// mergeArticle prefers the detail page and falls back to the issue listing.
func mergeArticle(summary nepjol.ArticleSummary, detail nepjol.ArticleDetail) nepjol.ArticleDetail {
	merged := detail
	merged.Title = firstNonEmpty(detail.Title, summary.Title)
	merged.DOI = firstNonEmpty(detail.DOI, summary.DOI)
	merged.Pages = firstNonEmpty(detail.Pages, summary.Pages)
	merged.PDFURL = firstNonEmpty(detail.PDFURL, parser.DownloadURL(summary.PDFURL))
	if len(merged.Authors) == 0 {
		merged.Authors = splitAuthors(summary.Authors)
	}
	return merged
}

func splitAuthors(raw string) []nepjol.ArticleAuthor {
	var out []nepjol.ArticleAuthor
	for _, name := range strings.Split(raw, ",") {
		if name = nepjol.NormalizeSpace(name); name != "" {
			out = append(out, nepjol.ArticleAuthor{Name: name})
		}
	}
	return out
}

func buildPublication(a nepjol.ArticleDetail, journal nepjol.Journal, issue nepjol.Issue, owner nepjol.Author) nepjol.Publication {
	coAuthors := make([]string, 0, len(a.Authors))
	for _, author := range a.Authors[1:] {
		coAuthors = append(coAuthors, author.Name)
	}
	refs := make([]nepjol.Reference, 0, len(a.References))
	for i, text := range a.References {
		refs = append(refs, nepjol.Reference{Position: i + 1, Text: text})
	}
	year, _ := strconv.Atoi(strings.TrimSpace(a.Year))

	return nepjol.Publication{
		Title:           nepjol.Truncate(a.Title, nepjol.MaxPublicationTitle),
		Abstract:        nepjol.Truncate(a.Abstract, nepjol.MaxAbstract),
		DOI:             nepjol.Truncate(a.DOI, nepjol.MaxDOI),
		PublicationYear: year,
		Volume:          nepjol.Truncate(a.Volume, nepjol.MaxVolumeIssuePages),
		Issue:           nepjol.Truncate(a.Issue, nepjol.MaxVolumeIssuePages),
		Pages:           nepjol.Truncate(a.Pages, nepjol.MaxVolumeIssuePages),
		Publisher:       journal.Title,
		CoAuthors:       nepjol.Truncate(strings.Join(coAuthors, ", "), nepjol.MaxCoAuthors),
		AuthorID:        owner.ID,
		Keywords:        a.Keywords,
		References:      refs,
		IssueLink:       nepjol.IssueLink{IssueID: issue.ID, Section: nepjol.DefaultSection},
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
