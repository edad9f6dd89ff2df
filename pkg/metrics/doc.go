// Package metrics defines the Prometheus counters of the contact API and the
// /metrics handler.
package metrics
