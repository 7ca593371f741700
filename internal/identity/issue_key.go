package identity

import (
	"time"

	"github.com/JakeFAU/nepjol-importer/internal/nepjol"
	"github.com/JakeFAU/nepjol-importer/internal/parser"
)

// IssueKey is the catalog identity of an issue plus its derived date.
type IssueKey struct {
	Volume          int
	Number          int
	PublicationDate time.Time
}

// DeriveIssueKey fills in what the listing left unresolved. Volume and number
// default to 1. The date comes from the explicit date, then the year, then a
// "(YYYY)" in the title, then today.
func DeriveIssueKey(listing nepjol.IssueListing, now time.Time) IssueKey {
	volume, number, year := listing.Volume, listing.Number, listing.Year
	if volume == nil || number == nil || year == nil {
		v, n, y := parser.ParseIssueTitle(listing.Title)
		volume, number, year = orInt(volume, v), orInt(number, n), orInt(year, y)
	}

	key := IssueKey{Volume: 1, Number: 1}
	if volume != nil && *volume > 0 {
		key.Volume = *volume
	}
	if number != nil && *number > 0 {
		key.Number = *number
	}

	switch {
	case listing.PublishedDate != nil:
		key.PublicationDate = truncateDay(*listing.PublishedDate)
	case year != nil && *year > 0:
		key.PublicationDate = time.Date(*year, time.January, 1, 0, 0, 0, 0, time.UTC)
	default:
		key.PublicationDate = truncateDay(now)
	}
	return key
}

func orInt(primary, fallback *int) *int {
	if primary != nil {
		return primary
	}
	return fallback
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
