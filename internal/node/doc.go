// Package node runs requests through the engine on a fixed pool of
// workers fed by a shared, bounded ingress queue.
//
// The accept loop submits InboundRequest values to the Master, which
// owns the IngressQueue and the workers. Each worker handles one request
// at a time and delivers exactly one response through the request's
// handle, turning a panic into a 500. Shutdown closes the queue; workers
// drain what is left and exit, and Run returns once all of them have.
package node
