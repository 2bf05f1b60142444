// Package influxdb provides the optional sensor telemetry sink.
//
// It wraps the official influxdb-client-go v2 library for recording
// numeric sensor readings and alarm states extracted from site reports.
// Writes are non-blocking and batched; async write errors are delivered
// via a callback rather than failing the report update that produced
// them.
//
// All methods are safe for concurrent use from multiple goroutines.
package influxdb
