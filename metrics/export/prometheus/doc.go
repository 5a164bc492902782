// Package prometheus exposes tokenauth service metrics through a
// client_golang Collector.
//
// Counters are named tokenauth_*_total. Authenticate latency is the
// tokenauth_authenticate_latency_seconds histogram. Nothing is registered
// globally; use Register or Handler.
package prometheus
