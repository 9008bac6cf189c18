// Package http provides the plain HTTP endpoints served next to the worker
// WebSocket: service info, health and the startup package manifest.
package http
