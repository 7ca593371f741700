// Package api hosts the HTTP server, middleware, and REST handlers for
// operating the importer. Notable routes:
//   - GET /healthz / readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/imports to start a run, POST /v1/imports/stop to stop it and
//     GET /v1/imports/status to poll it.
//   - GET /v1/sources/journals to preview the source journal listing.
package api
