// Package rebound holds the data model shared by the routing core.
//
// A Request is the routing view of one inbound HTTP request: everything
// the circuit needs to match on and everything the engine needs to
// forward it. A Response is the canonical answer produced for it, either
// built directly from a rule or adapted from an upstream reply.
//
// The EventSink interface is the observability boundary of the core. The
// engine and the worker pool report through it and never touch a global
// logger; see observability.NewEventSink for the logging and metrics
// implementation.
package rebound
