// Package metrics provides build metrics for docpipe.
//
// Components receive a Recorder through dependency injection. NoopRecorder is
// the default and does nothing; PrometheusRecorder registers docpipe_* series
// on a registry which the CLI writes to a node_exporter textfile after each
// run when metrics.textfile is configured:
//
//	reg := prometheus.NewRegistry()
//	rec := metrics.NewPrometheusRecorder(reg)
//	// ... run the build with rec ...
//	_ = metrics.WriteTextfile(reg, "/var/lib/node_exporter/docpipe.prom")
package metrics
