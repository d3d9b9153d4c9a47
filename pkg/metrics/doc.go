// Package metrics exposes cfgd's Prometheus metrics.
//
// Each Metrics value owns its own registry, so tests and embedded servers do
// not collide on the global default registry.
//
//   - cfgd_mutations_total: objects accepted or rejected (labels: type, operation, result)
//   - cfgd_objects: stored objects per type (labels: type)
//   - cfgd_commit_duration_seconds: durable commit latency (labels: backend, result)
//   - cfgd_admin_requests_total: admin API requests (labels: method, route, status)
//   - cfgd_admin_request_duration_seconds: admin API latency (labels: method, route)
//   - cfgd_lifecycle_transitions_total: service state changes (labels: state)
//   - cfgd_event_subscribers: connected change stream subscribers
//
// A nil *Metrics is valid and records nothing.
package metrics
