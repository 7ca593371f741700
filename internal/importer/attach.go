package importer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/nepjol-importer/internal/nepjol"
)

var (
	unsafeFilename = regexp.MustCompile(`[^A-Za-z0-9._-]`)
	errNoBlobStore = errors.New("no blob store configured")
)

// PDFFilename names a publication PDF after its DOI, or after its record ID
// when it has none.
func PDFFilename(pub nepjol.Publication) string {
	if doi := strings.TrimSpace(pub.DOI); doi != "" {
		return unsafeFilename.ReplaceAllString(doi, "_") + ".pdf"
	}
	return fmt.Sprintf("publication-%d.pdf", pub.ID)
}

func coverFilename(journal nepjol.Journal, imageURL string) string {
	ext := ".jpg"
	if u, err := url.Parse(imageURL); err == nil {
		if e := strings.ToLower(path.Ext(u.Path)); e != "" && len(e) <= 5 {
			ext = e
		}
	}
	return fmt.Sprintf("journal-%d%s", journal.ID, ext)
}

// attachPDF downloads and stores a publication PDF. Failures are logged and
// leave the publication without a file.
func (im *Importer) attachPDF(ctx context.Context, pub nepjol.Publication, pdfURL string) bool {
	err := im.attach(ctx, nepjol.FilePublicationPDF, pub.ID, "pdfs", PDFFilename(pub), pdfURL)
	if err != nil {
		im.logger.Warn("pdf attachment skipped",
			zap.Int64("publication_id", pub.ID),
			zap.String("url", pdfURL),
			zap.Error(err))
		return false
	}
	return true
}

func (im *Importer) attachCover(ctx context.Context, journal nepjol.Journal, imageURL string) {
	if imageURL == "" {
		return
	}
	err := im.attach(ctx, nepjol.FileJournalCover, journal.ID, "covers", coverFilename(journal, imageURL), imageURL)
	if err != nil {
		im.logger.Warn("cover attachment skipped",
			zap.Int64("journal_id", journal.ID),
			zap.String("url", imageURL),
			zap.Error(err))
	}
}

func (im *Importer) attach(ctx context.Context, kind nepjol.FileKind, ownerID int64, folder, filename, rawURL string) error {
	if im.blobs == nil {
		return errNoBlobStore
	}
	dl, err := im.fetcher.Download(ctx, rawURL)
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}
	file := nepjol.StoredFile{
		Kind:        kind,
		OwnerID:     ownerID,
		Filename:    filename,
		ContentType: dl.ContentType,
		Size:        int64(len(dl.Body)),
	}
	if im.hasher != nil {
		if file.Checksum, err = im.hasher.Hash(dl.Body); err != nil {
			return fmt.Errorf("hash body: %w", err)
		}
	}
	file.URI, err = im.blobs.PutObject(ctx, im.blobPath(folder, filename), dl.ContentType, bytes.NewReader(dl.Body))
	if err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	if err := im.catalog.AttachFile(ctx, file); err != nil {
		return fmt.Errorf("attach file: %w", err)
	}
	return nil
}

func (im *Importer) blobPath(folder, filename string) string {
	prefix := strings.Trim(im.cfg.BlobPrefix, "/")
	if prefix == "" {
		return folder + "/" + filename
	}
	return prefix + "/" + folder + "/" + filename
}
