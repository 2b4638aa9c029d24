// Package api hosts the HTTP server, middleware, and handlers for the volume
// scraper. Notable routes:
//   - GET / and /view render HTML tables of stored and live readings.
//   - GET /scrape runs one scrape cycle and reports whether a row was added.
//   - GET /api/readings lists stored readings as JSON.
//   - GET /health, /status and /metrics for operators.
package api
