/*
Package monitoring provides metrics collection for the worker.

# Overview

This package implements Prometheus-based metrics collection, tracking HTTP
requests, package installs, main script executions, and worker channel
traffic between the worker and connected host pages.

# Features

- HTTP request metrics (latency, throughput)
- Package install attempts by result
- Main script executions by result and duration
- Connected host page sessions
- Inbound and outbound message counts by type
- Uptime

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	timer := monitoring.NewTimer()
	// ... install a package ...
	metrics.RecordInstall(err == nil, timer.Elapsed())
*/
package monitoring
