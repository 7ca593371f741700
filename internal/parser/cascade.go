// Package parser extracts NepJOL listing and detail records from parsed HTML.
//
// Every function here is pure: it reads a goquery document and never performs
// I/O. The source runs Open Journal Systems with themes that rename blocks
// between journals, so each field is read through an ordered cascade of
// selectors and the first non-empty hit wins. A miss on every selector yields
// the zero value rather than an error.
package parser

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/nepjol-importer/internal/nepjol"
)

// extractor reads one candidate value from a document.
type extractor func(doc *goquery.Selection) string

// cascade returns the first non-empty value produced by extractors.
func cascade(doc *goquery.Selection, extractors ...extractor) string {
	for _, extract := range extractors {
		if v := strings.TrimSpace(extract(doc)); v != "" {
			return v
		}
	}
	return ""
}

func textOf(selector string) extractor {
	return func(doc *goquery.Selection) string {
		return nepjol.NormalizeSpace(doc.Find(selector).First().Text())
	}
}

func attrOf(selector, attr string) extractor {
	return func(doc *goquery.Selection) string {
		v, _ := doc.Find(selector).First().Attr(attr)
		return v
	}
}

func metaContent(doc *goquery.Document, name string) string {
	v, _ := doc.Find(`meta[name="` + name + `"]`).First().Attr("content")
	return strings.TrimSpace(v)
}

func metaContents(doc *goquery.Document, name string) []string {
	var out []string
	doc.Find(`meta[name="` + name + `"]`).Each(func(_ int, s *goquery.Selection) {
		if v := strings.TrimSpace(s.AttrOr("content", "")); v != "" {
			out = append(out, v)
		}
	})
	return out
}

// absURL resolves href against the document location when it is known.
func absURL(doc *goquery.Document, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || doc == nil || doc.Url == nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return doc.Url.ResolveReference(ref).String()
}
