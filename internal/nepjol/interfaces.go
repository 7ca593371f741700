package nepjol

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// ErrNotFound is returned by Catalog lookups that match nothing.
var ErrNotFound = errors.New("record not found")

// Fetcher retrieves source pages. Implementations pace every request and never
// retry; callers treat any error as "no data".
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*goquery.Document, error)
	Download(ctx context.Context, url string) (Download, error)
}

// Catalog is the target data store. Creates are atomic per entity; a
// publication is committed together with its references and issue link.
type Catalog interface {
	FindJournalByTitle(ctx context.Context, title string) (Journal, error)
	CreateJournal(ctx context.Context, journal Journal) (Journal, error)

	FindIssue(ctx context.Context, journalID int64, volume, number int) (Issue, error)
	CreateIssue(ctx context.Context, issue Issue) (Issue, error)

	FindAuthorByORCID(ctx context.Context, orcid string) (Author, error)
	FindAuthorByName(ctx context.Context, name string) (Author, error)
	CreateAuthor(ctx context.Context, author Author) (Author, error)
	SetAuthorORCID(ctx context.Context, authorID int64, orcid string) error

	FindPublicationByDOI(ctx context.Context, doi string) (Publication, error)
	CreatePublication(ctx context.Context, pub Publication) (Publication, error)

	AttachFile(ctx context.Context, file StoredFile) error
	CreateUserPlaceholder(ctx context.Context, email, userType string, active bool) (UserPlaceholder, error)
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Publisher pushes run notifications to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Hasher computes content digests for stored attachments.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}
