package parser

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/nepjol-importer/internal/nepjol"
)

var issnPattern = regexp.MustCompile(`ISSN[:\s]+(\d{4}-\d{3}[0-9X])`)

// ParseJournalDetail reads description, ISSN and cover image from a journal
// landing page.
func ParseJournalDetail(doc *goquery.Document) nepjol.JournalDetail {
	root := doc.Selection
	detail := nepjol.JournalDetail{
		Description: cascade(root,
			textOf(".journal-description"),
			textOf(".description"),
			textOf(".additional_content"),
			func(*goquery.Selection) string { return metaContent(doc, "description") },
		),
	}
	if m := issnPattern.FindStringSubmatch(doc.Text()); m != nil {
		detail.ISSN = m[1]
	}
	doc.Find("img").EachWithBreak(func(_ int, img *goquery.Selection) bool {
		src := img.AttrOr("src", "")
		if strings.Contains(src, "homepageImage") || strings.Contains(strings.ToLower(src), "cover") {
			detail.CoverImageURL = absURL(doc, src)
			return false
		}
		return true
	})
	return detail
}
