package parser

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/nepjol-importer/internal/nepjol"
)

// ParseArticleDetail reads an article landing page. Bibliographic fields come
// from the citation_* meta tags; abstract and references come from content
// blocks.
func ParseArticleDetail(doc *goquery.Document) nepjol.ArticleDetail {
	detail := nepjol.ArticleDetail{
		Title:    metaContent(doc, "citation_title"),
		Volume:   metaContent(doc, "citation_volume"),
		Issue:    metaContent(doc, "citation_issue"),
		Year:     citationYear(metaContent(doc, "citation_date")),
		Pages:    pageRange(metaContent(doc, "citation_firstpage"), metaContent(doc, "citation_lastpage")),
		DOI:      metaContent(doc, "citation_doi"),
		PDFURL:   metaContent(doc, "citation_pdf_url"),
		Keywords: metaContents(doc, "citation_keywords"),
		Abstract: parseAbstract(doc),
	}
	if detail.Title == "" {
		detail.Title = cascade(doc.Selection, textOf("h1.page_title"), textOf("h1"))
	}

	names := metaContents(doc, "citation_author")
	institutions := metaContents(doc, "citation_author_institution")
	authors := make([]nepjol.ArticleAuthor, 0, len(names))
	for i, name := range names {
		author := nepjol.ArticleAuthor{Name: nepjol.NormalizeSpace(name)}
		if i < len(institutions) {
			author.Affiliation = institutions[i]
		}
		authors = append(authors, author)
	}
	detail.Authors = ZipORCIDs(authors, orcidLinks(doc))
	detail.References = parseReferences(doc)
	return detail
}

// citationYear keeps the first path segment of a citation_date such as
// "2021/06/30".
func citationYear(date string) string {
	if i := strings.Index(date, "/"); i >= 0 {
		return strings.TrimSpace(date[:i])
	}
	return date
}

func pageRange(first, last string) string {
	switch {
	case first == "":
		return ""
	case last == "" || last == first:
		return first
	default:
		return first + "-" + last
	}
}

func parseAbstract(doc *goquery.Document) string {
	for _, selector := range []string{".item.abstract", "section.abstract", ".abstract", "#articleAbstract"} {
		block := doc.Find(selector).First()
		if block.Length() == 0 {
			continue
		}
		block = block.Clone()
		block.Find("h2, h3, .label").Remove()
		if text := nepjol.NormalizeSpace(block.Text()); text != "" {
			return text
		}
	}
	return metaContent(doc, "DC.Description")
}

func parseReferences(doc *goquery.Document) []string {
	for _, selector := range []string{".item.references .value", "section.references", ".references", "#articleCitations"} {
		block := doc.Find(selector).First()
		if block.Length() == 0 {
			continue
		}
		if refs := referenceLines(block); len(refs) > 0 {
			return refs
		}
	}
	return nil
}

// referenceLines prefers one reference per paragraph or list item and falls
// back to splitting the block text on line breaks.
func referenceLines(block *goquery.Selection) []string {
	var refs []string
	block.Find("p, li").Each(func(_ int, s *goquery.Selection) {
		if text := nepjol.NormalizeSpace(s.Text()); text != "" {
			refs = append(refs, text)
		}
	})
	if len(refs) > 0 {
		return refs
	}
	block = block.Clone()
	block.Find("h2, h3, .label").Remove()
	for _, line := range strings.Split(block.Text(), "\n") {
		if text := nepjol.NormalizeSpace(line); text != "" {
			refs = append(refs, text)
		}
	}
	return refs
}
