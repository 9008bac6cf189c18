/*
Package server assembles the worker service.

It loads the startup manifest and main script, shares one package fetcher
and wheelhouse across sessions, and serves:

	GET /          service info
	GET /health    health and session count
	GET /manifest  startup packages
	GET /metrics   Prometheus metrics
	GET /worker    WebSocket worker session
*/
package server
