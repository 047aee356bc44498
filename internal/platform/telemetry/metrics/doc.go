// Package metrics provides operational metrics for the realtime cart core.
//
// # Metric Categories
//
//   - Usage: live sessions, open connections
//   - Throughput: published events by name
//   - Delivery: dropped deliveries by reason (disconnected, overflow)
//   - Input: rejected inbound frames by error code
//   - Consistency: total reconciliations that snapped a drifted total
//
// # Integration
//
// Collectors live on a private registry exposed in Prometheus text format by
// Recorder.Handler. A nil *Recorder is valid and records nothing, so core
// packages can take one without forcing tests to build a registry.
package metrics
