// Package metrics exposes Prometheus collectors for the worker runtime:
// task throughput and duration, delay queue depth, master messaging
// reliability, and resource staging outcomes.
package metrics
