// Package transport owns the UDP sockets a KNXnet/IP tunnel client
// speaks over: a multicast socket for gateway discovery and a unicast
// socket reused for both control traffic and tunneled data. The
// specification folds the classical separate control/data channels onto
// a single socket pair because a tunnel reuses the control endpoint.
//
// Transport has no knowledge of KNXnet/IP service types; it moves byte
// buffers and lets the caller invoke the frame codec. Sockets are owned
// exclusively by the goroutine that calls Open; nothing else may send on
// them.
package transport
