package parser

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/nepjol-importer/internal/nepjol"
)

var (
	volumePattern = regexp.MustCompile(`Vol\.?\s*(\d+)`)
	numberPattern = regexp.MustCompile(`(?:No\.?|Issue)\s*(\d+)`)
	yearPattern   = regexp.MustCompile(`\((\d{4})\)`)
)

var issueDateLayouts = []string{"2006-01-02", "January 2, 2006", "2 January 2006"}

// ParseIssueList extracts issues from a journal archive page. Issue summary
// blocks are read first; raw issue links are only scanned when no block
// matched. Volume, number and year stay nil when the title does not carry
// them.
func ParseIssueList(doc *goquery.Document) []nepjol.IssueListing {
	var out []nepjol.IssueListing
	doc.Find(".obj_issue_summary, .issue-summary").Each(func(_ int, block *goquery.Selection) {
		a := block.Find("a.title, .title a, h2 a, h3 a").First()
		href, ok := a.Attr("href")
		if !ok {
			return
		}
		title := nepjol.NormalizeSpace(a.Text())
		if series := nepjol.NormalizeSpace(block.Find(".series").First().Text()); series != "" {
			title = joinTitle(series, title)
		}
		listing := newIssueListing(title, absURL(doc, href))
		listing.PublishedDate = parseIssueDate(block)
		out = append(out, listing)
	})
	if len(out) > 0 {
		return out
	}

	seen := make(map[string]struct{})
	doc.Find(`a[href*="/issue/view/"]`).Each(func(_ int, a *goquery.Selection) {
		link := absURL(doc, a.AttrOr("href", ""))
		title := nepjol.NormalizeSpace(a.Text())
		if link == "" || title == "" {
			return
		}
		if _, dup := seen[link]; dup {
			return
		}
		seen[link] = struct{}{}
		out = append(out, newIssueListing(title, link))
	})
	return out
}

// ParseIssueTitle applies the volume, number and year patterns to a free-text
// issue title such as "Vol. 3 No. 2 (2022)".
func ParseIssueTitle(title string) (volume, number, year *int) {
	return matchInt(volumePattern, title), matchInt(numberPattern, title), matchInt(yearPattern, title)
}

func newIssueListing(title, link string) nepjol.IssueListing {
	volume, number, year := ParseIssueTitle(title)
	return nepjol.IssueListing{
		Title:  title,
		URL:    link,
		Volume: volume,
		Number: number,
		Year:   year,
	}
}

func joinTitle(series, title string) string {
	if title == "" || strings.Contains(series, title) {
		return series
	}
	return series + ": " + title
}

func matchInt(re *regexp.Regexp, s string) *int {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return nil
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return nil
	}
	return &n
}

func parseIssueDate(block *goquery.Selection) *time.Time {
	raw := cascade(block,
		attrOf("time", "datetime"),
		textOf(".published .value"),
		textOf(".date_published"),
	)
	if raw == "" {
		return nil
	}
	for _, layout := range issueDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}
	return nil
}
