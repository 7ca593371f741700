package parser

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/nepjol-importer/internal/nepjol"
)

const doiHostMarker = "doi.org/"

// ParseArticleList extracts the article rows of an issue table of contents.
// Rows without a title link are dropped; every other missing field is left
// empty.
func ParseArticleList(doc *goquery.Document) []nepjol.ArticleSummary {
	var out []nepjol.ArticleSummary
	doc.Find(".obj_article_summary, .article-summary").Each(func(_ int, item *goquery.Selection) {
		a := item.Find(".title a, h3 a, h4 a").First()
		title := nepjol.NormalizeSpace(a.Text())
		href := a.AttrOr("href", "")
		if title == "" || href == "" {
			return
		}
		summary := nepjol.ArticleSummary{
			Title:   title,
			URL:     absURL(doc, href),
			Authors: nepjol.NormalizeSpace(item.Find(".authors").First().Text()),
			Pages:   nepjol.NormalizeSpace(item.Find(".pages").First().Text()),
			DOI:     DOIFromURL(cascade(item, attrOf("a.doi", "href"), attrOf(".doi a", "href"))),
		}
		if pdf := item.Find("a.obj_galley_link.pdf, a.galley-link.pdf").First(); pdf.Length() > 0 {
			summary.PDFURL = absURL(doc, pdf.AttrOr("href", ""))
		}
		out = append(out, summary)
	})
	return out
}

// DOIFromURL returns the part of a DOI link after "doi.org/". Inputs without
// that marker are returned trimmed.
func DOIFromURL(link string) string {
	link = strings.TrimSpace(link)
	if i := strings.Index(link, doiHostMarker); i >= 0 {
		return link[i+len(doiHostMarker):]
	}
	return link
}

// DownloadURL rewrites an OJS galley view link into its direct download link.
func DownloadURL(galleyURL string) string {
	return strings.Replace(galleyURL, "/article/view/", "/article/download/", 1)
}
