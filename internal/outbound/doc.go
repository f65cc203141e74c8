// Package outbound performs the network call of a Forward action and
// adapts the upstream reply into a rebound.Response.
//
// A single Client, and with it a single pooled transport, is shared by
// every worker. Failures are returned as *TransportError classified as
// Timeout, ConnectionFailed or UpstreamProtocolError; StatusFor maps
// them to 504, 502 and 502.
package outbound
