// Package metrics provides build metrics for dualbuild.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so no call site needs a nil check:
//
//	svc := build.NewService() // records nothing
//	svc = svc.WithRecorder(metrics.NewPrometheusRecorder(reg))
//
// A one-shot CLI has no scrape endpoint, so PrometheusRecorder is paired with
// WriteTextfile, which dumps a registry in the node-exporter textfile format.
package metrics
