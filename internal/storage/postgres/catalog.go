package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/JakeFAU/nepjol-importer/internal/nepjol"
)

// Catalog implements nepjol.Catalog on Postgres. Every create is its own
// statement or transaction, so a crash mid-run never leaves a partial
// publication behind.
type Catalog struct {
	db querier
}

// NewCatalog wraps an open pool.
func NewCatalog(db querier) (*Catalog, error) {
	if db == nil {
		return nil, errNoPool
	}
	return &Catalog{db: db}, nil
}

// Close releases the underlying pool.
func (c *Catalog) Close() {
	if c == nil || c.db == nil {
		return
	}
	c.db.Close()
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return nepjol.ErrNotFound
	}
	return err
}

const journalColumns = `id, title, description, issn, website_url, cover_image, publisher, language, open_access, active, created_at`

// FindJournalByTitle matches titles case-insensitively.
func (c *Catalog) FindJournalByTitle(ctx context.Context, title string) (nepjol.Journal, error) {
	var j nepjol.Journal
	err := c.db.QueryRow(ctx,
		`SELECT `+journalColumns+` FROM journals WHERE lower(title) = lower($1) ORDER BY id LIMIT 1`,
		title,
	).Scan(&j.ID, &j.Title, &j.Description, &j.ISSN, &j.WebsiteURL, &j.CoverImage,
		&j.Publisher, &j.Language, &j.OpenAccess, &j.Active, &j.CreatedAt)
	if err != nil {
		return nepjol.Journal{}, notFound(err)
	}
	return j, nil
}

// CreateJournal inserts a journal and returns it with its ID.
func (c *Catalog) CreateJournal(ctx context.Context, j nepjol.Journal) (nepjol.Journal, error) {
	err := c.db.QueryRow(ctx, `
INSERT INTO journals (title, description, issn, website_url, cover_image, publisher, language, open_access, active, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
RETURNING id`,
		j.Title, j.Description, j.ISSN, j.WebsiteURL, j.CoverImage,
		j.Publisher, j.Language, j.OpenAccess, j.Active, j.CreatedAt,
	).Scan(&j.ID)
	if err != nil {
		return nepjol.Journal{}, fmt.Errorf("insert journal: %w", err)
	}
	return j, nil
}

// FindIssue matches on (journal, volume, number).
func (c *Catalog) FindIssue(ctx context.Context, journalID int64, volume, number int) (nepjol.Issue, error) {
	var is nepjol.Issue
	var st string
	err := c.db.QueryRow(ctx, `
SELECT id, journal_id, volume, issue_number, title, publication_date, status
FROM issues WHERE journal_id = $1 AND volume = $2 AND issue_number = $3`,
		journalID, volume, number,
	).Scan(&is.ID, &is.JournalID, &is.Volume, &is.Number, &is.Title, &is.PublicationDate, &st)
	if err != nil {
		return nepjol.Issue{}, notFound(err)
	}
	is.Status = nepjol.IssueStatus(st)
	return is, nil
}

// CreateIssue inserts an issue and returns it with its ID.
func (c *Catalog) CreateIssue(ctx context.Context, is nepjol.Issue) (nepjol.Issue, error) {
	err := c.db.QueryRow(ctx, `
INSERT INTO issues (journal_id, volume, issue_number, title, publication_date, status)
VALUES ($1,$2,$3,$4,$5,$6)
RETURNING id`,
		is.JournalID, is.Volume, is.Number, is.Title, is.PublicationDate, string(is.Status),
	).Scan(&is.ID)
	if err != nil {
		return nepjol.Issue{}, fmt.Errorf("insert issue: %w", err)
	}
	return is, nil
}

const authorColumns = `id, COALESCE(user_id, 0), name, affiliation, designation, title, COALESCE(orcid, '')`

func scanAuthor(row pgx.Row) (nepjol.Author, error) {
	var a nepjol.Author
	err := row.Scan(&a.ID, &a.UserID, &a.Name, &a.Affiliation, &a.Designation, &a.Title, &a.ORCID)
	if err != nil {
		return nepjol.Author{}, notFound(err)
	}
	return a, nil
}

// FindAuthorByORCID matches the ORCID exactly.
func (c *Catalog) FindAuthorByORCID(ctx context.Context, orcid string) (nepjol.Author, error) {
	return scanAuthor(c.db.QueryRow(ctx,
		`SELECT `+authorColumns+` FROM authors WHERE orcid = $1`, orcid))
}

// FindAuthorByName matches case-insensitively with whitespace runs collapsed.
func (c *Catalog) FindAuthorByName(ctx context.Context, name string) (nepjol.Author, error) {
	return scanAuthor(c.db.QueryRow(ctx,
		`SELECT `+authorColumns+` FROM authors
WHERE lower(regexp_replace(btrim(name), '\s+', ' ', 'g')) = lower($1)
ORDER BY id LIMIT 1`, nepjol.NormalizeSpace(name)))
}

// CreateAuthor inserts an author and returns it with its ID.
func (c *Catalog) CreateAuthor(ctx context.Context, a nepjol.Author) (nepjol.Author, error) {
	err := c.db.QueryRow(ctx, `
INSERT INTO authors (user_id, name, affiliation, designation, title, orcid)
VALUES (NULLIF($1, 0), $2, $3, $4, $5, NULLIF($6, ''))
RETURNING id`,
		a.UserID, a.Name, a.Affiliation, a.Designation, a.Title, a.ORCID,
	).Scan(&a.ID)
	if err != nil {
		return nepjol.Author{}, fmt.Errorf("insert author: %w", err)
	}
	return a, nil
}

// SetAuthorORCID backfills an ORCID on an author that has none.
func (c *Catalog) SetAuthorORCID(ctx context.Context, authorID int64, orcid string) error {
	tag, err := c.db.Exec(ctx,
		`UPDATE authors SET orcid = $2 WHERE id = $1 AND orcid IS NULL`, authorID, orcid)
	if err != nil {
		return fmt.Errorf("update author orcid: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nepjol.ErrNotFound
	}
	return nil
}

// FindPublicationByDOI matches DOIs case-insensitively. Only identifying
// columns are loaded.
func (c *Catalog) FindPublicationByDOI(ctx context.Context, doi string) (nepjol.Publication, error) {
	var p nepjol.Publication
	err := c.db.QueryRow(ctx, `
SELECT id, title, COALESCE(doi, ''), author_id
FROM publications WHERE lower(doi) = lower($1) ORDER BY id LIMIT 1`, doi,
	).Scan(&p.ID, &p.Title, &p.DOI, &p.AuthorID)
	if err != nil {
		return nepjol.Publication{}, notFound(err)
	}
	return p, nil
}

// CreatePublication inserts the publication, its references and its issue
// link in one transaction.
func (c *Catalog) CreatePublication(ctx context.Context, p nepjol.Publication) (nepjol.Publication, error) {
	tx, err := c.db.Begin(ctx)
	if err != nil {
		return nepjol.Publication{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	keywords := p.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	err = tx.QueryRow(ctx, `
INSERT INTO publications (title, abstract, doi, publication_year, volume, issue, pages, publisher, co_authors, author_id, keywords)
VALUES ($1,$2,NULLIF($3, ''),NULLIF($4, 0),$5,$6,$7,$8,$9,$10,$11)
RETURNING id`,
		p.Title, p.Abstract, p.DOI, p.PublicationYear, p.Volume, p.Issue, p.Pages,
		p.Publisher, p.CoAuthors, p.AuthorID, keywords,
	).Scan(&p.ID)
	if err != nil {
		return nepjol.Publication{}, fmt.Errorf("insert publication: %w", err)
	}

	for _, ref := range p.References {
		if _, err := tx.Exec(ctx,
			`INSERT INTO publication_references (publication_id, position, text) VALUES ($1,$2,$3)`,
			p.ID, ref.Position, ref.Text,
		); err != nil {
			return nepjol.Publication{}, fmt.Errorf("insert reference %d: %w", ref.Position, err)
		}
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO issue_articles (issue_id, publication_id, section) VALUES ($1,$2,$3)`,
		p.IssueLink.IssueID, p.ID, p.IssueLink.Section,
	); err != nil {
		return nepjol.Publication{}, fmt.Errorf("insert issue link: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nepjol.Publication{}, fmt.Errorf("commit publication: %w", err)
	}
	return p, nil
}

// AttachFile records the stored binary and points the owning record at it.
func (c *Catalog) AttachFile(ctx context.Context, f nepjol.StoredFile) error {
	var update string
	switch f.Kind {
	case nepjol.FileJournalCover:
		update = `UPDATE journals SET cover_image = $2 WHERE id = $1`
	case nepjol.FilePublicationPDF:
		update = `UPDATE publications SET pdf_file = $2 WHERE id = $1`
	default:
		return fmt.Errorf("unknown file kind %q", f.Kind)
	}

	tx, err := c.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	tag, err := tx.Exec(ctx, update, f.OwnerID, f.URI)
	if err != nil {
		return fmt.Errorf("update owner: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nepjol.ErrNotFound
	}
	if _, err := tx.Exec(ctx, `
INSERT INTO attachments (kind, owner_id, filename, uri, content_type, checksum, size_bytes)
VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		string(f.Kind), f.OwnerID, f.Filename, f.URI, f.ContentType, f.Checksum, f.Size,
	); err != nil {
		return fmt.Errorf("insert attachment: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit attachment: %w", err)
	}
	return nil
}

// CreateUserPlaceholder inserts an owner account for an imported author.
func (c *Catalog) CreateUserPlaceholder(ctx context.Context, email, userType string, active bool) (nepjol.UserPlaceholder, error) {
	u := nepjol.UserPlaceholder{Email: email, Type: userType, Active: active}
	err := c.db.QueryRow(ctx,
		`INSERT INTO users (email, user_type, is_active) VALUES ($1,$2,$3) RETURNING id`,
		email, userType, active,
	).Scan(&u.ID)
	if err != nil {
		return nepjol.UserPlaceholder{}, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}
