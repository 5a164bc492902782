// Package otel exports tokenauth service metrics as OpenTelemetry observable
// instruments. One callback reads a snapshot per collection cycle. The caller
// owns the MeterProvider.
package otel
