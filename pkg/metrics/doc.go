/*
Package metrics provides Prometheus metrics collection and exposition for
the raftsim harness.

Metrics are registered once at package init via prometheus.MustRegister and
exposed through Handler for an embedding test binary that wants to scrape
them. The step engine increments StepsTotal and sets VirtualTimeMS on every
dispatched event, records StepDuration (wall-clock, not virtual time) with
the Timer helper, and increments InvariantViolationsTotal when the safety
monitor reports a fatal violation, before the harness panics.
*/
package metrics
