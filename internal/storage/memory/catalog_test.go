package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/nepjol-importer/internal/nepjol"
)

func TestCatalogJournalLookupIgnoresCase(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := NewCatalog()
	created, err := c.CreateJournal(ctx, nepjol.Journal{Title: "Nepal Journal of Science"})
	require.NoError(t, err)

	got, err := c.FindJournalByTitle(ctx, "NEPAL journal of science")
	require.NoError(t, err)
	require.Equal(t, created, got)

	_, err = c.FindJournalByTitle(ctx, "Other")
	require.ErrorIs(t, err, nepjol.ErrNotFound)
}

func TestCatalogAuthorLookups(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := NewCatalog()
	a, err := c.CreateAuthor(ctx, nepjol.Author{Name: "A. Sharma", ORCID: "0000-1111-2222-3333"})
	require.NoError(t, err)

	byName, err := c.FindAuthorByName(ctx, "a.   SHARMA")
	require.NoError(t, err)
	require.Equal(t, a.ID, byName.ID)

	byORCID, err := c.FindAuthorByORCID(ctx, "0000-1111-2222-3333")
	require.NoError(t, err)
	require.Equal(t, a.ID, byORCID.ID)

	_, err = c.FindAuthorByORCID(ctx, "")
	require.ErrorIs(t, err, nepjol.ErrNotFound)

	_, err = c.CreateAuthor(ctx, nepjol.Author{Name: "B", ORCID: "0000-1111-2222-3333"})
	require.Error(t, err)

	require.ErrorIs(t, c.SetAuthorORCID(ctx, 999, "x"), nepjol.ErrNotFound)
}

func TestCatalogPublicationAndAttachments(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := NewCatalog()
	pub, err := c.CreatePublication(ctx, nepjol.Publication{
		Title:      "Paper",
		DOI:        "10.3126/ABC.1",
		References: []nepjol.Reference{{Position: 1, Text: "ref"}},
	})
	require.NoError(t, err)

	found, err := c.FindPublicationByDOI(ctx, "10.3126/abc.1")
	require.NoError(t, err)
	require.Equal(t, pub.ID, found.ID)

	_, err = c.FindPublicationByDOI(ctx, "")
	require.ErrorIs(t, err, nepjol.ErrNotFound)

	require.NoError(t, c.AttachFile(ctx, nepjol.StoredFile{Kind: nepjol.FilePublicationPDF, OwnerID: pub.ID, URI: "memory://x.pdf"}))
	require.Equal(t, "memory://x.pdf", c.Publications()[0].PDFFile)
	require.Len(t, c.Files(), 1)

	err = c.AttachFile(ctx, nepjol.StoredFile{Kind: nepjol.FileJournalCover, OwnerID: 42})
	require.ErrorIs(t, err, nepjol.ErrNotFound)
}

func TestCatalogIssueKey(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := NewCatalog()
	is, err := c.CreateIssue(ctx, nepjol.Issue{JournalID: 1, Volume: 2, Number: 5})
	require.NoError(t, err)

	got, err := c.FindIssue(ctx, 1, 2, 5)
	require.NoError(t, err)
	require.Equal(t, is, got)

	_, err = c.FindIssue(ctx, 2, 2, 5)
	require.ErrorIs(t, err, nepjol.ErrNotFound)
}

func TestCatalogPlaceholderEmailsAreUnique(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := NewCatalog()
	u, err := c.CreateUserPlaceholder(ctx, "a.sharma@imported.nepjol.local", nepjol.PlaceholderUserType, false)
	require.NoError(t, err)
	require.False(t, u.Active)

	_, err = c.CreateUserPlaceholder(ctx, "A.Sharma@imported.nepjol.local", nepjol.PlaceholderUserType, false)
	require.Error(t, err)
	require.Len(t, c.Users(), 1)
}
