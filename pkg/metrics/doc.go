// Package metrics provides observability primitives for the VCSMS server
// and client: structured logging, Prometheus metrics, OpenTelemetry
// tracing spans, and health-check endpoints.
//
// # Quick Start
//
//	collector := metrics.Global()
//	collector.RecordHandshake("success")
//	collector.SessionStarted()
//
//	go metrics.ServePrometheus(":9090", collector)
//
// # Logging
//
//	logger := metrics.NewLogger(
//		metrics.WithLevel(metrics.LevelInfo),
//		metrics.WithFormat(metrics.FormatJSON),
//		metrics.WithFields(metrics.Fields{"service": "vcsms-server"}),
//	)
//	logger.Info("session_established", map[string]any{"client_id": id})
//
// # Tracing
//
//	ctx, span := metrics.StartSpan(ctx, metrics.SpanHandshakeResponder)
//	defer metrics.EndSpan(span, err)
//
// # Health
//
//	server := metrics.NewServer(metrics.ServerConfig{Collector: collector, Version: "0.1.0"})
//	go server.ListenAndServe(":9090")
package metrics
