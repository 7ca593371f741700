// Package memory provides in-process implementations of the catalog, status
// and blob stores for development and tests.
package memory

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/JakeFAU/nepjol-importer/internal/nepjol"
)

// Catalog implements nepjol.Catalog in memory. Lookups scan in insertion order,
// so the oldest match wins.
type Catalog struct {
	mu           sync.RWMutex
	nextID       int64
	journals     []nepjol.Journal
	issues       []nepjol.Issue
	authors      []nepjol.Author
	publications []nepjol.Publication
	users        []nepjol.UserPlaceholder
	files        []nepjol.StoredFile
}

// NewCatalog constructs an empty Catalog.
func NewCatalog() *Catalog {
	return &Catalog{}
}

func (c *Catalog) id() int64 {
	c.nextID++
	return c.nextID
}

// FindJournalByTitle matches titles case-insensitively.
func (c *Catalog) FindJournalByTitle(_ context.Context, title string) (nepjol.Journal, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, j := range c.journals {
		if strings.EqualFold(j.Title, strings.TrimSpace(title)) {
			return j, nil
		}
	}
	return nepjol.Journal{}, nepjol.ErrNotFound
}

// CreateJournal stores a journal and assigns its ID.
func (c *Catalog) CreateJournal(_ context.Context, journal nepjol.Journal) (nepjol.Journal, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	journal.ID = c.id()
	c.journals = append(c.journals, journal)
	return journal, nil
}

// FindIssue matches on (journal, volume, number).
func (c *Catalog) FindIssue(_ context.Context, journalID int64, volume, number int) (nepjol.Issue, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, is := range c.issues {
		if is.JournalID == journalID && is.Volume == volume && is.Number == number {
			return is, nil
		}
	}
	return nepjol.Issue{}, nepjol.ErrNotFound
}

// CreateIssue stores an issue and assigns its ID.
func (c *Catalog) CreateIssue(_ context.Context, issue nepjol.Issue) (nepjol.Issue, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	issue.ID = c.id()
	c.issues = append(c.issues, issue)
	return issue, nil
}

// FindAuthorByORCID matches the ORCID exactly.
func (c *Catalog) FindAuthorByORCID(_ context.Context, orcid string) (nepjol.Author, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, a := range c.authors {
		if orcid != "" && a.ORCID == orcid {
			return a, nil
		}
	}
	return nepjol.Author{}, nepjol.ErrNotFound
}

// FindAuthorByName matches names case-insensitively after collapsing
// whitespace.
func (c *Catalog) FindAuthorByName(_ context.Context, name string) (nepjol.Author, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	want := nepjol.NormalizeSpace(name)
	for _, a := range c.authors {
		if strings.EqualFold(nepjol.NormalizeSpace(a.Name), want) {
			return a, nil
		}
	}
	return nepjol.Author{}, nepjol.ErrNotFound
}

// CreateAuthor stores an author and assigns its ID.
func (c *Catalog) CreateAuthor(_ context.Context, author nepjol.Author) (nepjol.Author, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if author.ORCID != "" {
		for _, a := range c.authors {
			if a.ORCID == author.ORCID {
				return nepjol.Author{}, errors.New("orcid already assigned")
			}
		}
	}
	author.ID = c.id()
	c.authors = append(c.authors, author)
	return author, nil
}

// SetAuthorORCID backfills an author's ORCID.
func (c *Catalog) SetAuthorORCID(_ context.Context, authorID int64, orcid string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.authors {
		if c.authors[i].ID == authorID {
			c.authors[i].ORCID = orcid
			return nil
		}
	}
	return nepjol.ErrNotFound
}

// FindPublicationByDOI matches DOIs case-insensitively.
func (c *Catalog) FindPublicationByDOI(_ context.Context, doi string) (nepjol.Publication, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, p := range c.publications {
		if doi != "" && strings.EqualFold(p.DOI, doi) {
			return clonePublication(p), nil
		}
	}
	return nepjol.Publication{}, nepjol.ErrNotFound
}

// CreatePublication stores a publication together with its references and
// issue link.
func (c *Catalog) CreatePublication(_ context.Context, pub nepjol.Publication) (nepjol.Publication, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	pub = clonePublication(pub)
	pub.ID = c.id()
	c.publications = append(c.publications, pub)
	return clonePublication(pub), nil
}

// AttachFile records a stored binary on its owning record.
func (c *Catalog) AttachFile(_ context.Context, file nepjol.StoredFile) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch file.Kind {
	case nepjol.FileJournalCover:
		for i := range c.journals {
			if c.journals[i].ID == file.OwnerID {
				c.journals[i].CoverImage = file.URI
				c.files = append(c.files, file)
				return nil
			}
		}
	case nepjol.FilePublicationPDF:
		for i := range c.publications {
			if c.publications[i].ID == file.OwnerID {
				c.publications[i].PDFFile = file.URI
				c.files = append(c.files, file)
				return nil
			}
		}
	default:
		return errors.New("unknown file kind")
	}
	return nepjol.ErrNotFound
}

// CreateUserPlaceholder stores an owner account for an imported author.
func (c *Catalog) CreateUserPlaceholder(_ context.Context, email, userType string, active bool) (nepjol.UserPlaceholder, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, u := range c.users {
		if strings.EqualFold(u.Email, email) {
			return nepjol.UserPlaceholder{}, errors.New("email already registered")
		}
	}
	user := nepjol.UserPlaceholder{ID: c.id(), Email: email, Type: userType, Active: active}
	c.users = append(c.users, user)
	return user, nil
}

// Journals returns a copy of all stored journals.
func (c *Catalog) Journals() []nepjol.Journal {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]nepjol.Journal(nil), c.journals...)
}

// Issues returns a copy of all stored issues.
func (c *Catalog) Issues() []nepjol.Issue {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]nepjol.Issue(nil), c.issues...)
}

// Authors returns a copy of all stored authors.
func (c *Catalog) Authors() []nepjol.Author {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]nepjol.Author(nil), c.authors...)
}

// Publications returns a copy of all stored publications.
func (c *Catalog) Publications() []nepjol.Publication {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]nepjol.Publication, 0, len(c.publications))
	for _, p := range c.publications {
		out = append(out, clonePublication(p))
	}
	return out
}

// Users returns a copy of all placeholder users.
func (c *Catalog) Users() []nepjol.UserPlaceholder {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]nepjol.UserPlaceholder(nil), c.users...)
}

// Files returns a copy of all attached files.
func (c *Catalog) Files() []nepjol.StoredFile {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]nepjol.StoredFile(nil), c.files...)
}

func clonePublication(p nepjol.Publication) nepjol.Publication {
	p.Keywords = append([]string(nil), p.Keywords...)
	p.References = append([]nepjol.Reference(nil), p.References...)
	return p
}
