package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"golang.org/x/sync/errgroup"
)

// DiscoveryAddr is the KNXnet/IP multicast group and port used for
// gateway discovery.
const DiscoveryAddr = "224.0.23.12:3671"

// readBufferSize is large enough for any KNXnet/IP frame this stack
// builds or parses; the protocol's own totalLength field is 16-bit but
// tunneling frames never approach that size in practice.
const readBufferSize = 2048

// inboundQueueSize bounds how many received-but-not-yet-handled
// datagrams the transport buffers before applying backpressure by
// blocking the receive loop.
const inboundQueueSize = 64

// Logger is the subset of structured logging this package needs. A nil
// Logger is valid; callers that don't care about transport-level
// diagnostics can omit one entirely.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
}

// Message is an inbound datagram: the raw bytes read off the wire and
// the address it arrived from.
type Message struct {
	Data []byte
	Addr *net.UDPAddr
}

// Options configures Open.
type Options struct {
	// RemoteEndpoint is the gateway's control endpoint, once known
	// (learned from a SEARCH_RESPONSE or supplied directly). It may be
	// nil until discovery completes; SendControl then requires an
	// explicit address via SendControlTo.
	RemoteEndpoint *net.UDPAddr

	// JoinDiscovery opens and joins the multicast discovery socket.
	// Callers that already have a RemoteEndpoint and never need
	// discovery may set this false.
	JoinDiscovery bool

	Logger Logger
}

// Transport owns the discovery and control UDP sockets for one
// connection attempt. It is not safe for concurrent Send calls from
// multiple goroutines beyond the owning goroutine described in the
// package doc.
type Transport struct {
	control   *net.UDPConn
	discovery *net.UDPConn
	remote    *net.UDPAddr

	logger Logger

	inbound chan Message

	group  *errgroup.Group
	cancel context.CancelFunc

	closeOnce sync.Once
	closeErr  error
}

// Open binds the control socket (and, when requested, the multicast
// discovery socket) and starts the receive loop(s) under an errgroup
// supervised by ctx. Cancelling ctx or calling Close stops both loops.
func Open(ctx context.Context, opts Options) (*Transport, error) {
	control, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: 0})
	if err != nil {
		return nil, fmt.Errorf("transport: open control socket: %w", err)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	group, loopCtx := errgroup.WithContext(loopCtx)

	t := &Transport{
		control: control,
		remote:  opts.RemoteEndpoint,
		logger:  opts.Logger,
		inbound: make(chan Message, inboundQueueSize),
		group:   group,
		cancel:  cancel,
	}

	if opts.JoinDiscovery {
		discovery, err := joinDiscoveryGroup()
		if err != nil {
			control.Close()
			cancel()
			return nil, err
		}
		t.discovery = discovery
		group.Go(func() error { return t.receiveLoop(loopCtx, discovery) })
	}

	group.Go(func() error { return t.receiveLoop(loopCtx, control) })

	return t, nil
}

// joinDiscoveryGroup binds a socket to the KNXnet/IP discovery port and
// joins the standard multicast group on all usable IPv4 interfaces.
func joinDiscoveryGroup() (*net.UDPConn, error) {
	groupAddr, err := net.ResolveUDPAddr("udp4", DiscoveryAddr)
	if err != nil {
		return nil, fmt.Errorf("transport: resolve discovery address: %w", err)
	}

	conn, err := net.ListenMulticastUDP("udp4", nil, groupAddr)
	if err != nil {
		return nil, fmt.Errorf("transport: join discovery group: %w", err)
	}
	return conn, nil
}

// receiveLoop reads datagrams off conn until ctx is cancelled or the
// socket is closed, forwarding each to the inbound channel. Read
// timeouts are skipped and never stop the loop. Any other read error
// (anything but a close caused by our own shutdown) ends the loop and
// propagates to the errgroup so Close/Wait can observe it.
func (t *Transport) receiveLoop(ctx context.Context, conn *net.UDPConn) error {
	buf := make([]byte, readBufferSize)

	for {
		n, addr, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			return fmt.Errorf("transport: read from %s: %w", conn.LocalAddr(), err)
		}

		data := make([]byte, n)
		copy(data, buf[:n])

		select {
		case t.inbound <- Message{Data: data, Addr: addr}:
		case <-ctx.Done():
			return nil
		}
	}
}

// Inbound returns the channel carrying received datagrams from every
// socket this transport owns.
func (t *Transport) Inbound() <-chan Message { return t.inbound }

// RemoteEndpoint returns the gateway control endpoint, if known.
func (t *Transport) RemoteEndpoint() *net.UDPAddr { return t.remote }

// SetRemoteEndpoint records the gateway control endpoint learned from a
// SEARCH_RESPONSE or CONNECT_RESPONSE, for subsequent SendControl calls.
func (t *Transport) SetRemoteEndpoint(addr *net.UDPAddr) { t.remote = addr }

// SendControl writes buffer to the previously recorded remote endpoint
// over the unicast control socket.
func (t *Transport) SendControl(buffer []byte) error {
	if t.remote == nil {
		return errors.New("transport: no remote endpoint set")
	}
	return t.SendControlTo(buffer, t.remote)
}

// SendControlTo writes buffer to addr over the unicast control socket,
// regardless of the recorded remote endpoint.
func (t *Transport) SendControlTo(buffer []byte, addr *net.UDPAddr) error {
	if _, err := t.control.WriteToUDP(buffer, addr); err != nil {
		return fmt.Errorf("transport: send to %s: %w", addr, err)
	}
	return nil
}

// SendDiscovery writes buffer to the multicast discovery group. It
// fails with ErrNoDiscoverySocket if Open was called with
// JoinDiscovery=false.
func (t *Transport) SendDiscovery(buffer []byte) error {
	if t.discovery == nil {
		return ErrNoDiscoverySocket
	}
	groupAddr, err := net.ResolveUDPAddr("udp4", DiscoveryAddr)
	if err != nil {
		return fmt.Errorf("transport: resolve discovery address: %w", err)
	}
	if _, err := t.discovery.WriteToUDP(buffer, groupAddr); err != nil {
		return fmt.Errorf("transport: send discovery: %w", err)
	}
	return nil
}

// ControlLocalAddr returns the local address the control socket is
// bound to, used to build the HPAI a CONNECT_REQUEST advertises.
func (t *Transport) ControlLocalAddr() *net.UDPAddr {
	return t.control.LocalAddr().(*net.UDPAddr)
}

// Close stops both receive loops and releases the sockets. It is
// idempotent and safe to call more than once. Close waits for the
// receive loop goroutines to exit before returning.
func (t *Transport) Close() error {
	t.closeOnce.Do(func() {
		t.cancel()
		t.control.Close()
		if t.discovery != nil {
			t.discovery.Close()
		}
		t.closeErr = t.group.Wait()
	})
	return t.closeErr
}
