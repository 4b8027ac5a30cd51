// Package otel bridges authkit's in-process counters onto
// OpenTelemetry observable instruments.
//
// [NewExporter] registers one Int64ObservableCounter per
// [authkit.CounterDef]; a single callback snapshots the counters on
// each collection cycle. Callers own the MeterProvider.
package otel
