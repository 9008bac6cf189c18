// Package middleware holds the gin middleware of the worker's HTTP server:
// CORS, per-IP rate limiting and request ids.
package middleware
