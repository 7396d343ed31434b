package session

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/knxnet/internal/dpt"
	"github.com/nerrad567/knxnet/internal/knxnet"
	"github.com/nerrad567/knxnet/internal/transport"
)

// Logger is the subset of structured logging the FSM needs. Passing a
// nil Logger is valid; every call site guards against it.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

const inputQueueSize = 8

// Config configures a new Session.
type Config struct {
	// RemoteEndpoint, when set, skips discovery and connects directly.
	RemoteEndpoint *net.UDPAddr

	// PhysAddrFilter, when non-zero, restricts accepted SEARCH_RESPONSE
	// frames to the gateway advertising this individual address.
	PhysAddrFilter uint16

	Options  knxnet.Options
	Timeouts Timeouts
	Codec    dpt.Codec
	TwoLevel bool

	Logger Logger
	Clock  Clock
}

// Session is the owner of one KNXnet/IP tunneling connection's state
// machine. Create with New (which starts its event loop), stop with Close.
type Session struct {
	cfg       Config
	transport *transport.Transport
	logger    Logger
	clock     Clock
	timeouts  Timeouts
	codec     dpt.Codec

	input chan any

	eventSubsMu sync.Mutex
	eventSubs   []chan Event

	group     *errgroup.Group
	cancel    context.CancelFunc
	closeOnce sync.Once
	closeErr  error

	// Fields below are owned exclusively by the run() goroutine.
	state         State
	channelID     byte
	remoteControl *net.UDPAddr
	outboundSeq   byte
	inboundSeq    byte
	hbFailures    int
	ackRetries    int
	wantConnected bool

	deferred []any

	pending      map[uuid.UUID]chan ackResult
	groupWaiters map[uint16][]chan groupResult

	inflight       *knxnet.Datagram
	connectResult  chan error
	disconnResult  chan error
	teardownReason error

	timerC     <-chan time.Time
	armedTimer timerKind
}

// New creates a Session bound to a fresh transport and starts its event
// loop. Call Connect to initiate the tunnel.
func New(ctx context.Context, cfg Config) (*Session, error) {
	if cfg.Timeouts == (Timeouts{}) {
		cfg.Timeouts = DefaultTimeouts()
	}
	if cfg.Clock == nil {
		cfg.Clock = realClock{}
	}
	if cfg.Options == (knxnet.Options{}) {
		cfg.Options = knxnet.DefaultOptions()
	}

	tr, err := transport.Open(ctx, transport.Options{
		RemoteEndpoint: cfg.RemoteEndpoint,
		JoinDiscovery:  cfg.RemoteEndpoint == nil,
		Logger:         cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("session: open transport: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	group, runCtx := errgroup.WithContext(runCtx)

	s := &Session{
		cfg:           cfg,
		transport:     tr,
		logger:        cfg.Logger,
		clock:         cfg.Clock,
		timeouts:      cfg.Timeouts,
		codec:         cfg.Codec,
		input:         make(chan any, inputQueueSize),
		group:         group,
		cancel:        cancel,
		state:         StateUninitialized,
		remoteControl: cfg.RemoteEndpoint,
		pending:       make(map[uuid.UUID]chan ackResult),
		groupWaiters:  make(map[uint16][]chan groupResult),
	}

	group.Go(func() error { return s.run(runCtx) })

	return s, nil
}

// Connect initiates the search/connect path and blocks until the
// session reaches online, ctx is cancelled, or the connect attempt is
// refused.
func (s *Session) Connect(ctx context.Context) error {
	result := make(chan error, 1)
	if err := s.send(ctx, inputConnect{result: result}); err != nil {
		return err
	}
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Disconnect initiates a graceful teardown and blocks until the session
// reaches idle or ctx is cancelled.
func (s *Session) Disconnect(ctx context.Context) error {
	result := make(chan error, 1)
	if err := s.send(ctx, inputDisconnect{result: result}); err != nil {
		return err
	}
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WriteRaw sends a group-value write of raw bytes to addr, bypassing DPT
// encoding, and resolves once the gateway ACKs (or the timeout/ctx
// elapses).
func (s *Session) WriteRaw(ctx context.Context, addr uint16, raw []byte, bitLength int, timeout time.Duration) error {
	dg := knxnet.NewDatagram(s.cfg.Options)
	dg.MakeWriteRawRequest(addr, raw, bitLength)
	return s.sendOutbound(ctx, dg, timeout)
}

// Write encodes value as dptID and sends a group-value write to addr.
func (s *Session) Write(ctx context.Context, addr uint16, value any, dptID dpt.ID, timeout time.Duration) error {
	if s.codec == nil {
		return fmt.Errorf("session: no DPT codec configured")
	}
	raw, bits, err := s.codec.Encode(dptID, value)
	if err != nil {
		return err
	}
	return s.WriteRaw(ctx, addr, raw, bits, timeout)
}

// RespondRaw sends a group-value response of raw bytes to addr, bypassing
// DPT encoding, and resolves once the gateway ACKs (or the timeout/ctx
// elapses).
func (s *Session) RespondRaw(ctx context.Context, addr uint16, raw []byte, bitLength int, timeout time.Duration) error {
	dg := knxnet.NewDatagram(s.cfg.Options)
	dg.MakeRespondRawRequest(addr, raw, bitLength)
	return s.sendOutbound(ctx, dg, timeout)
}

// Respond encodes value as dptID and sends a group-value response to addr.
func (s *Session) Respond(ctx context.Context, addr uint16, value any, dptID dpt.ID, timeout time.Duration) error {
	if s.codec == nil {
		return fmt.Errorf("session: no DPT codec configured")
	}
	raw, bits, err := s.codec.Encode(dptID, value)
	if err != nil {
		return err
	}
	return s.RespondRaw(ctx, addr, raw, bits, timeout)
}

// Read sends a group-value read to addr and waits for the matching
// GroupValue_Response, up to timeout.
func (s *Session) Read(ctx context.Context, addr uint16, timeout time.Duration) ([]byte, error) {
	waiter := make(chan groupResult, 1)
	if err := s.send(ctx, inputRegisterWaiter{addr: addr, result: waiter}); err != nil {
		return nil, err
	}

	dg := knxnet.NewDatagram(s.cfg.Options)
	dg.MakeReadRequest(addr)
	if err := s.sendOutbound(ctx, dg, timeout); err != nil {
		return nil, err
	}

	deadline := s.clock.After(timeout)
	select {
	case res := <-waiter:
		return res.payload, res.err
	case <-deadline:
		return nil, ErrRequestTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// sendOutbound submits dg for a tunneling round trip and waits for the
// ACK outcome, up to timeout.
func (s *Session) sendOutbound(ctx context.Context, dg knxnet.Datagram, timeout time.Duration) error {
	ack := make(chan ackResult, 1)
	if err := s.send(ctx, inputOutbound{dg: dg, ack: ack}); err != nil {
		return err
	}

	deadline := s.clock.After(timeout)
	select {
	case res := <-ack:
		return res.err
	case <-deadline:
		return ErrRequestTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

// send enqueues in on the event loop's input channel, or gives up with
// ctx's error when ctx is done first. It does not check whether the
// session has been closed: after Close, a send succeeds while the input
// buffer has room and otherwise blocks until ctx is done.
func (s *Session) send(ctx context.Context, in any) error {
	select {
	case s.input <- in:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close tears the session down: cancels the event loop, waits for it
// and the transport's receive loops to exit, and closes every
// subscriber channel. Idempotent.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		s.closeErr = s.group.Wait()
		if err := s.transport.Close(); err != nil && s.closeErr == nil {
			s.closeErr = err
		}
		s.closeSubscribers()
	})
	return s.closeErr
}

func (s *Session) logDebug(msg string, kv ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, kv...)
	}
}

func (s *Session) logWarn(msg string, kv ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, kv...)
	}
}

func (s *Session) logInfo(msg string, kv ...any) {
	if s.logger != nil {
		s.logger.Info(msg, kv...)
	}
}
