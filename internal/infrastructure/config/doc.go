// Package config provides 12-factor configuration management for the worker.
//
// Configuration is loaded from environment variables with sensible defaults.
// CLI flags can override environment variables for development flexibility.
//
// Configuration Sections:
//   - Server: HTTP server settings (port, host)
//   - Runtime: script runtime timeout, main script override, data directory
//   - Packages: package manifest override and local wheelhouse directory
//   - Fetch: remote package download timeout, retries and rate
//   - Logging: Log level and output format
//   - RateLimit: Per-IP rate limiting configuration
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	fmt.Printf("Worker listening on %s\n", cfg.Addr())
//
// Environment Variables:
//   - PORT, HOST
//   - RUNTIME_TIMEOUT, MAIN_SCRIPT, DATA_DIR
//   - PACKAGE_MANIFEST, WHEELHOUSE
//   - FETCH_TIMEOUT, FETCH_RETRIES, FETCH_RPS
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
package config
