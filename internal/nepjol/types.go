package nepjol

import (
	"strings"
	"time"
	"unicode/utf8"
)

// Field limits mirrored from the target catalog schema.
const (
	MaxJournalTitle      = 300
	MaxJournalDesc       = 5000
	MaxISSN              = 20
	MaxIssueTitle        = 300
	MaxPublicationTitle  = 500
	MaxAbstract          = 10000
	MaxDOI               = 255
	MaxVolumeIssuePages  = 50
	MaxCoAuthors         = 5000
	DefaultJournalDesc   = "Journal imported from NepJOL."
	DefaultSection       = "Article"
	DefaultPublisher     = "Nepal Journals Online"
	DefaultLanguage      = "English"
	ImportedDesignation  = "Researcher"
	ImportedAuthorTitle  = "Dr."
	PlaceholderUserType  = "author"
	PlaceholderEmailHost = "imported.nepjol.local"
)

// IssueStatus is the lifecycle state of an Issue.
type IssueStatus string

// IssueStatusPublished is assigned to every imported issue.
const IssueStatusPublished IssueStatus = "published"

// JournalListing is one entry of the source's journal index page.
type JournalListing struct {
	Name      string `json:"name"`
	URL       string `json:"url"`
	ShortName string `json:"short_name"`
}

// JournalDetail holds what the journal landing page contributes.
type JournalDetail struct {
	Description   string
	ISSN          string
	CoverImageURL string
}

// IssueListing is one issue found on a journal's archive page. Volume, Number
// and Year are nil when the markup did not expose them.
type IssueListing struct {
	Title         string
	URL           string
	Volume        *int
	Number        *int
	Year          *int
	PublishedDate *time.Time
}

// ArticleSummary is one row of an issue's table of contents. Missing fields
// are empty strings.
type ArticleSummary struct {
	Title   string
	URL     string
	Authors string
	Pages   string
	DOI     string
	PDFURL  string
}

// ArticleAuthor is one author as exposed by the citation meta tags.
type ArticleAuthor struct {
	Name        string
	Affiliation string
	ORCID       string
}

// ArticleDetail is everything the article landing page contributes.
type ArticleDetail struct {
	Title      string
	Abstract   string
	Authors    []ArticleAuthor
	Volume     string
	Issue      string
	Year       string
	Pages      string
	DOI        string
	PDFURL     string
	Keywords   []string
	References []string
}

// Journal is a catalog journal record.
type Journal struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	ISSN        string    `json:"issn,omitempty"`
	WebsiteURL  string    `json:"website_url"`
	CoverImage  string    `json:"cover_image,omitempty"`
	Publisher   string    `json:"publisher"`
	Language    string    `json:"language"`
	OpenAccess  bool      `json:"open_access"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
}

// Issue is a catalog issue record keyed by (JournalID, Volume, Number).
type Issue struct {
	ID              int64       `json:"id"`
	JournalID       int64       `json:"journal_id"`
	Volume          int         `json:"volume"`
	Number          int         `json:"issue_number"`
	Title           string      `json:"title"`
	PublicationDate time.Time   `json:"publication_date"`
	Status          IssueStatus `json:"status"`
}

// Author is a catalog author record.
type Author struct {
	ID          int64  `json:"id"`
	UserID      int64  `json:"user_id"`
	Name        string `json:"name"`
	Affiliation string `json:"affiliation"`
	Designation string `json:"designation"`
	Title       string `json:"title"`
	ORCID       string `json:"orcid,omitempty"`
}

// Reference is a free-text reference row; Position starts at 1.
type Reference struct {
	Position int    `json:"position"`
	Text     string `json:"text"`
}

// IssueLink attaches a publication to exactly one issue.
type IssueLink struct {
	IssueID int64  `json:"issue_id"`
	Section string `json:"section"`
}

// Publication is a catalog article record. PublicationYear is 0 when unknown.
type Publication struct {
	ID              int64       `json:"id"`
	Title           string      `json:"title"`
	Abstract        string      `json:"abstract"`
	DOI             string      `json:"doi,omitempty"`
	PublicationYear int         `json:"publication_year,omitempty"`
	Volume          string      `json:"volume"`
	Issue           string      `json:"issue"`
	Pages           string      `json:"pages"`
	Publisher       string      `json:"publisher"`
	CoAuthors       string      `json:"co_authors"`
	AuthorID        int64       `json:"author_id"`
	Keywords        []string    `json:"keywords,omitempty"`
	PDFFile         string      `json:"pdf_file,omitempty"`
	References      []Reference `json:"references,omitempty"`
	IssueLink       IssueLink   `json:"issue_link"`
}

// UserPlaceholder is the inactive account synthesized for imported authors.
type UserPlaceholder struct {
	ID     int64  `json:"id"`
	Email  string `json:"email"`
	Type   string `json:"type"`
	Active bool   `json:"active"`
}

// FileKind selects which record/field a stored binary belongs to.
type FileKind string

// Supported attachment targets.
const (
	FileJournalCover   FileKind = "journal_cover"
	FilePublicationPDF FileKind = "publication_pdf"
)

// StoredFile describes a binary written to the BlobStore.
type StoredFile struct {
	Kind        FileKind
	OwnerID     int64
	Filename    string
	URI         string
	ContentType string
	Checksum    string
	Size        int64
}

// Download is a raw binary response.
type Download struct {
	URL         string
	ContentType string
	Body        []byte
}

// RunOptions limit and shape one import run.
type RunOptions struct {
	MaxJournals    int  `json:"max_journals"`
	MaxArticles    int  `json:"max_articles"`
	SkipDuplicates bool `json:"skip_duplicates"`
	DownloadPDFs   bool `json:"download_pdfs"`
	TestMode       bool `json:"test_mode"`
}

// Stats are the cumulative counters of one run.
type Stats struct {
	JournalsProcessed   int `json:"journals_processed"`
	JournalsCreated     int `json:"journals_created"`
	IssuesProcessed     int `json:"issues_processed"`
	IssuesCreated       int `json:"issues_created"`
	AuthorsCreated      int `json:"authors_created"`
	AuthorsMatched      int `json:"authors_matched"`
	PublicationsCreated int `json:"publications_created"`
	PublicationsSkipped int `json:"publications_skipped"`
	PDFsDownloaded      int `json:"pdfs_downloaded"`
	Errors              int `json:"errors"`
}

// Truncate cuts s to at most limit runes after trimming surrounding space.
func Truncate(s string, limit int) string {
	s = strings.TrimSpace(s)
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:limit]))
}

// NormalizeSpace collapses internal whitespace runs into single spaces.
func NormalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
