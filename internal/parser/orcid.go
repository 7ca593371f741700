package parser

import (
	"regexp"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/nepjol-importer/internal/nepjol"
)

var orcidPattern = regexp.MustCompile(`\d{4}-\d{4}-\d{4}-\d{3}[\dX]`)

// ZipORCIDs assigns the Nth ORCID link on the page to the Nth author.
//
// The source has no structured pairing between authors and ORCID links, so
// this relies on both lists appearing in the same order. An author beyond the
// end of links keeps whatever ORCID it already had. Links that do not contain
// a well-formed identifier still consume their position.
func ZipORCIDs(authors []nepjol.ArticleAuthor, links []string) []nepjol.ArticleAuthor {
	out := make([]nepjol.ArticleAuthor, len(authors))
	copy(out, authors)
	for i := range out {
		if i >= len(links) {
			break
		}
		if id := ORCIDFromURL(links[i]); id != "" {
			out[i].ORCID = id
		}
	}
	return out
}

// ORCIDFromURL extracts the bare identifier from an orcid.org link.
func ORCIDFromURL(link string) string {
	return orcidPattern.FindString(link)
}

func orcidLinks(doc *goquery.Document) []string {
	var links []string
	doc.Find(`a[href*="orcid.org/"]`).Each(func(_ int, a *goquery.Selection) {
		links = append(links, a.AttrOr("href", ""))
	})
	return links
}
