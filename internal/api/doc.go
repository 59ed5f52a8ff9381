// Package api hosts the HTTP server used by the serve command. Routes:
//   - GET /healthz and /readyz for health checks.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/run to trigger one announcer run on demand.
package api
