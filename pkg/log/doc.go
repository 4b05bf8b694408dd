/*
Package log provides structured logging for raftsim using zerolog.

It wraps zerolog with a package-global Logger, configured once via Init,
and a family of WithX helpers that attach a structured field and return a
child logger. The step engine uses WithComponent("fixture") for its own
lines and WithServer(id) for anything keyed to a single cluster member, so
a single fixture run's log can be filtered down to one server or to just
the dispatched-event stream.

Debug carries one line per dispatched step, Info/Warn carry scenario-level
transitions (leader elected, leader deposed), and invariant violations are
logged at Error immediately before the harness panics.
*/
package log
