// Package gateway is the accept side of the proxy.
//
// A Listener serves a gin engine whose only route is the catch-all
// Handler. The Handler applies admission control, reads the request
// body, submits an InboundRequest to the master node and writes the
// response the worker delivers back to the connection.
package gateway
