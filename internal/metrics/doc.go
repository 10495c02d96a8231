// Package metrics provides build metrics for sitebuilder.
//
// Components receive a Recorder through their options and default to
// NoopRecorder, so metrics collection never needs nil checks:
//
//	runner := build.NewRunner(build.WithRecorder(metrics.NoopRecorder{}))
//
// The development server swaps in a PrometheusRecorder when `server.metrics`
// is enabled and exposes it at /metrics through HTTPHandler.
package metrics
