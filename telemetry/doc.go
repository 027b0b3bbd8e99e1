// Package telemetry wires the registry snapshot into the export ecosystem and
// provides the ambient observability primitives for the service.
//
// It is a pure instrumentation layer: no routing, no sampling loops, no
// business state. The Observer owns the OpenTelemetry providers and the
// structured logger; SnapshotProducer feeds registry snapshots into OTLP or
// stdout periodic export, and SnapshotCollector serves the same snapshots to
// Prometheus scrapes.
package telemetry
