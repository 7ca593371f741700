package importer

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/nepjol-importer/internal/clock/system"
	sha "github.com/JakeFAU/nepjol-importer/internal/hash/sha256"
	"github.com/JakeFAU/nepjol-importer/internal/identity"
	"github.com/JakeFAU/nepjol-importer/internal/nepjol"
	"github.com/JakeFAU/nepjol-importer/internal/storage/memory"
)

const siteBase = "https://nepjol.test"

var errPageMissing = errors.New("status 404")

// fakeSite serves canned pages keyed by absolute URL.
type fakeSite struct {
	mu      sync.Mutex
	pages   map[string]string
	files   map[string]nepjol.Download
	onFetch func(rawURL string)
	fetched []string
}

func (f *fakeSite) Fetch(ctx context.Context, rawURL string) (*goquery.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.onFetch != nil {
		f.onFetch(rawURL)
	}
	f.mu.Lock()
	f.fetched = append(f.fetched, rawURL)
	html, ok := f.pages[rawURL]
	f.mu.Unlock()
	if !ok {
		return nil, errPageMissing
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}
	doc.Url, _ = url.Parse(rawURL)
	return doc, nil
}

func (f *fakeSite) Download(_ context.Context, rawURL string) (nepjol.Download, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	dl, ok := f.files[rawURL]
	if !ok {
		return nepjol.Download{}, errPageMissing
	}
	return dl, nil
}

func (f *fakeSite) fetchCount(rawURL string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, u := range f.fetched {
		if u == rawURL {
			n++
		}
	}
	return n
}

type articleFixture struct {
	id      int
	title   string
	doi     string
	authors []string
}

// newSite builds two journals. Journal one has two issues; the first lists
// the given articles and the second is empty.
func newSite(articles ...articleFixture) *fakeSite {
	site := &fakeSite{pages: map[string]string{}, files: map[string]nepjol.Download{}}
	site.pages[siteBase+"/index.php/index"] = `<html><body>
<h1><a href="/index.php/index">NepJOL</a></h1>
<h3><a href="/index.php/j1">Journal One</a></h3>
<h3><a href="/index.php/j2">Journal Two</a></h3>
</body></html>`
	site.pages[siteBase+"/index.php/j1"] = `<html><body>
<div class="description">About journal one.</div><p>ISSN: 1234-5678</p>
<img src="/public/journals/1/cover.png"></body></html>`
	site.files[siteBase+"/public/journals/1/cover.png"] = nepjol.Download{ContentType: "image/png", Body: []byte("png")}
	site.pages[siteBase+"/index.php/j1/issue/archive"] = `<html><body>
<div class="obj_issue_summary"><a class="title" href="/index.php/j1/issue/view/1">Vol. 2 No. 5 (2021)</a></div>
<div class="obj_issue_summary"><a class="title" href="/index.php/j1/issue/view/2">Vol. 1 No. 1 (2020)</a></div>
</body></html>`
	site.pages[siteBase+"/index.php/j1/issue/view/2"] = `<html><body><p>No articles</p></body></html>`
	site.pages[siteBase+"/index.php/j2/issue/archive"] = `<html><body>
<div class="obj_issue_summary"><a class="title" href="/index.php/j2/issue/view/9">Vol. 7 No. 1 (2019)</a></div>
</body></html>`
	site.pages[siteBase+"/index.php/j2/issue/view/9"] = `<html><body></body></html>`

	var toc strings.Builder
	toc.WriteString("<html><body>")
	for _, a := range articles {
		fmt.Fprintf(&toc, `<div class="obj_article_summary">
<h3 class="title"><a href="/index.php/j1/article/view/%d">%s</a></h3>
<div class="authors">%s</div>`, a.id, a.title, strings.Join(a.authors, ", "))
		if a.doi != "" {
			fmt.Fprintf(&toc, `<a class="doi" href="https://doi.org/%s">doi</a>`, a.doi)
		}
		fmt.Fprintf(&toc, `<a class="obj_galley_link pdf" href="/index.php/j1/article/view/%d/99">PDF</a></div>`, a.id)

		var meta strings.Builder
		fmt.Fprintf(&meta, `<meta name="citation_title" content="%s">`, a.title)
		for _, name := range a.authors {
			fmt.Fprintf(&meta, `<meta name="citation_author" content="%s">`, name)
		}
		if a.doi != "" {
			fmt.Fprintf(&meta, `<meta name="citation_doi" content="%s">`, a.doi)
		}
		fmt.Fprintf(&meta, `<meta name="citation_date" content="2021/03/01"><meta name="citation_volume" content="2"><meta name="citation_issue" content="5"><meta name="citation_keywords" content="health">`)
		site.pages[fmt.Sprintf("%s/index.php/j1/article/view/%d", siteBase, a.id)] = fmt.Sprintf(`<html><head>%s</head><body>
<section class="item abstract"><h2 class="label">Abstract</h2><p>Abstract of %s.</p></section>
<section class="item references"><div class="value"><p>First ref.</p><p>Second ref.</p></div></section>
</body></html>`, meta.String(), a.title)
		site.files[fmt.Sprintf("%s/index.php/j1/article/download/%d/99", siteBase, a.id)] = nepjol.Download{
			ContentType: "application/pdf",
			Body:        []byte(fmt.Sprintf("%%PDF-%d", a.id)),
		}
	}
	toc.WriteString("</body></html>")
	site.pages[siteBase+"/index.php/j1/issue/view/1"] = toc.String()
	return site
}

func threeArticles() []articleFixture {
	return []articleFixture{
		{id: 11, title: "First Article", doi: "10.3126/j1.v2i5.11", authors: []string{"Ram Thapa", "Sita Rai"}},
		{id: 12, title: "Second Article", doi: "10.3126/j1.v2i5.12", authors: []string{"Ram Thapa"}},
		{id: 13, title: "Third Article", doi: "10.3126/j1.v2i5.13", authors: []string{"Hari Shrestha", "Ram Thapa"}},
	}
}

var fixedNow = time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC)

type harness struct {
	site     *fakeSite
	catalog  *memory.Catalog
	blobs    *memory.BlobStore
	importer *Importer
}

func newHarness(site *fakeSite) *harness {
	return newHarnessWithCatalog(site, memory.NewCatalog())
}

func newHarnessWithCatalog(site *fakeSite, catalog *memory.Catalog) *harness {
	clock := system.Fixed{At: fixedNow}
	blobs := memory.NewBlobStore()
	resolver := identity.New(catalog, clock, nil, identity.Config{InstitutionName: "Tribhuvan University"}, nil)
	im := New(site, catalog, resolver, blobs, sha.New(), clock, Config{
		BaseURL:    siteBase + "/",
		IndexPath:  "/index.php/index",
		BlobPrefix: "nepjol",
	}, nil)
	return &harness{site: site, catalog: catalog, blobs: blobs, importer: im}
}

func defaultOptions() nepjol.RunOptions {
	return nepjol.RunOptions{SkipDuplicates: true, DownloadPDFs: true}
}
