// Package metrics provides observability hooks for update runs.
//
// It implements the Null Object pattern: components receive a Recorder
// through dependency injection and default to NoopRecorder, so metrics can
// be enabled by swapping in the Prometheus implementation without touching
// call sites or adding nil checks.
package metrics
