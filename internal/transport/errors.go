package transport

import "errors"

var (
	// ErrClosed names a transport that has already been closed. The send
	// methods do not return it: a send after Close fails with the
	// socket's own error.
	ErrClosed = errors.New("transport: closed")

	// ErrNoDiscoverySocket is returned by SendDiscovery when the
	// transport was opened without a multicast socket.
	ErrNoDiscoverySocket = errors.New("transport: no discovery socket")
)
