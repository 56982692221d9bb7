// Package telemetry provides logging, tracing, metrics, and the background
// resource monitor for the installer.
//
// Logging wraps zerolog with component and session scoping. Tracing wraps
// OpenTelemetry with spans for sessions, stages, and steps; export goes to
// stdout or an OTLP collector. Metrics are Prometheus collectors exposed on
// an optional HTTP endpoint. The resource monitor samples host memory and
// disk usage on its own timer and feeds both the gauges and the session
// store.
package telemetry
