// Package nepjol defines the records and collaborator interfaces shared by the
// NepJOL scraping and import pipeline.
//
// The pipeline is split into leaves that never import each other:
//   - fetcher/colly turns URLs into parsed HTML documents or raw downloads.
//   - parser extracts listing and detail records from those documents.
//   - identity decides whether a journal, issue or author already exists.
//   - importer drives the crawl and writes through the Catalog.
//   - status keeps the latest run state for polling clients.
//
// Entities here are plain records. The Catalog owns their persistence and the
// pipeline only ever creates them or reads them back, with ORCID backfill as
// the single update path.
package nepjol
