package parser

import (
	"net/url"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/nepjol-importer/internal/nepjol"
)

const indexPathMarker = "/index.php/index"

// ParseJournalList extracts the journals linked from heading elements of the
// site index. The index page's link to itself is dropped, and duplicate URLs
// keep their first occurrence.
func ParseJournalList(doc *goquery.Document) []nepjol.JournalListing {
	var (
		out  []nepjol.JournalListing
		seen = make(map[string]struct{})
	)
	doc.Find("h1 a, h2 a, h3 a, h4 a").Each(func(_ int, a *goquery.Selection) {
		href, ok := a.Attr("href")
		if !ok {
			return
		}
		link := absURL(doc, href)
		name := nepjol.NormalizeSpace(a.Text())
		if link == "" || name == "" || isIndexLink(link) {
			return
		}
		if _, dup := seen[link]; dup {
			return
		}
		seen[link] = struct{}{}
		out = append(out, nepjol.JournalListing{
			Name:      name,
			URL:       link,
			ShortName: ShortName(link),
		})
	})
	return out
}

// ShortName derives a journal slug from the tail of its URL path.
func ShortName(rawURL string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}
	p = strings.TrimRight(p, "/")
	if p == "" {
		return ""
	}
	return path.Base(p)
}

func isIndexLink(link string) bool {
	trimmed := strings.TrimRight(link, "/")
	return strings.HasSuffix(trimmed, indexPathMarker) || strings.HasSuffix(trimmed, "/index.php")
}
