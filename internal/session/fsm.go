package session

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/nerrad567/knxnet/internal/address"
	"github.com/nerrad567/knxnet/internal/knxnet"
	"github.com/nerrad567/knxnet/internal/transport"
)

// run is the session's event loop, the sole goroutine allowed to touch
// the FSM fields declared in session.go. It processes inbound datagrams,
// API requests, and timer expiry in the order they arrive, never
// blocking on anything but those three sources.
func (s *Session) run(ctx context.Context) error {
	s.enterIdle(nil)
	defer s.rejectAllPending(ErrClosed)

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-s.transport.Inbound():
			s.handleWire(msg)
		case in := <-s.input:
			s.handleAPIInput(in)
		case <-s.timerC:
			s.handleTimeout()
		}
	}
}

func (s *Session) armTimer(kind timerKind, d time.Duration) {
	s.armedTimer = kind
	s.timerC = s.clock.After(d)
}

// handleWire parses a raw datagram and dispatches on its service type.
// Malformed frames and frames for a service type this state doesn't
// expect are logged and dropped; they are never treated as fatal.
func (s *Session) handleWire(msg transport.Message) {
	frame, _, err := knxnet.ReadFrame(msg.Data)
	if err != nil {
		s.logDebug("malformed frame", "error", err, "from", msg.Addr)
		return
	}

	switch body := frame.Body.(type) {
	case knxnet.SearchResponseBody:
		s.onSearchResponse(body, msg.Addr)
	case knxnet.ConnectResponseBody:
		s.onConnectResponse(body)
	case knxnet.ConnStateBody:
		switch frame.Header.ServiceType {
		case knxnet.ConnectionstateResponse:
			s.onConnStateResponse(body)
		case knxnet.DisconnectResponse:
			s.onDisconnectResponse(body)
		case knxnet.DisconnectRequest:
			s.onDisconnectRequest(body)
		default:
			s.logDebug("unexpected ConnState service type", "serviceType", frame.Header.ServiceType.String())
		}
	case knxnet.TunnelingRequestBody:
		s.onTunnelingRequest(body)
	case knxnet.TunnelingAckBody:
		s.onTunnelingAck(body)
	default:
		s.logDebug("unhandled frame body", "serviceType", frame.Header.ServiceType.String())
	}
}

func (s *Session) handleAPIInput(in any) {
	switch v := in.(type) {
	case inputConnect:
		s.handleConnect(v)
	case inputDisconnect:
		s.handleDisconnect(v)
	case inputOutbound:
		s.handleOutboundRequest(v)
	case inputRegisterWaiter:
		s.groupWaiters[v.addr] = append(s.groupWaiters[v.addr], v.result)
	}
}

func (s *Session) handleTimeout() {
	kind := s.armedTimer
	s.timerC = nil
	s.armedTimer = timerNone

	switch kind {
	case timerIdle:
		// debounce elapsed; nothing automatic happens.
	case timerSearch:
		s.logWarn("discovery timed out")
		s.enterIdle(ErrRequestTimeout)
	case timerConnect:
		s.logWarn("connect request timed out")
		s.enterDisconnecting(ErrRequestTimeout)
	case timerAck:
		s.handleAckTimeout()
	case timerHeartbeatInterval:
		s.enterOutboundConnState()
	case timerHeartbeatAck:
		s.handleHeartbeatTimeout()
	case timerWaiting:
		s.enterOnline()
	case timerDisconnect:
		s.logWarn("disconnect response timed out")
		reason := s.teardownReason
		s.teardownReason = nil
		s.enterIdle(reason)
	}
}

// handleConnect resolves immediately for states that are already online;
// a Connect() arriving while an attempt is under way (searching,
// connecting, disconnecting) is answered with an in-progress error, so
// only one connect attempt runs at a time.
func (s *Session) handleConnect(v inputConnect) {
	switch s.state {
	case StateIdle, StateUninitialized:
		s.wantConnected = true
		s.connectResult = v.result
		s.enterSearching()
	case StateOnline, StateConnected, StateOutboundTunneling, StateInboundTunneling, StateOutboundConnState, StateWaiting:
		v.result <- nil
	default:
		v.result <- fmt.Errorf("session: connect already in progress (state %s)", s.state)
	}
}

func (s *Session) handleDisconnect(v inputDisconnect) {
	s.wantConnected = false
	switch s.state {
	case StateIdle, StateUninitialized:
		v.result <- nil
	default:
		s.disconnResult = v.result
		s.enterDisconnecting(nil)
	}
}

func (s *Session) handleOutboundRequest(v inputOutbound) {
	if s.state != StateOnline {
		s.deferred = append(s.deferred, v)
		return
	}
	if !s.cfg.Options.UseTunneling {
		s.sendOutboundRouted(v.dg, v.ack)
		return
	}
	s.enterOutboundTunneling(v.dg, v.ack)
}

// sendOutboundRouted sends dg as a ROUTING_INDICATION and resolves ack
// immediately: routing indications carry no acknowledgement, so there is
// no ACK wait, no inflight/pending bookkeeping, and no retry.
func (s *Session) sendOutboundRouted(dg knxnet.Datagram, ack chan ackResult) {
	if err := s.sendRoutingIndication(dg); err != nil {
		s.logWarn("send ROUTING_INDICATION failed", "error", err)
		ack <- ackResult{err: err}
		return
	}
	ack <- ackResult{status: knxnet.StatusNoError}
}

// replayDeferred drains the deferred queue built up while the session
// was not online, in FIFO order. Items that still can't proceed (e.g. a
// second outbound request while the first is in flight) are re-queued
// by the same handlers that would queue them on first arrival.
func (s *Session) replayDeferred() {
	queued := s.deferred
	s.deferred = nil
	for _, in := range queued {
		s.handleAPIInput(in)
	}
}

// ---- idle / search / connect ----

func (s *Session) enterIdle(connectErr error) {
	first := s.state == StateUninitialized

	s.channelID = 0
	if s.cfg.RemoteEndpoint == nil {
		s.remoteControl = nil
	}
	s.rejectAllPending(ErrNoResponse)

	if s.connectResult != nil {
		if connectErr == nil {
			connectErr = ErrNoResponse
		}
		s.connectResult <- connectErr
		s.connectResult = nil
	}
	if s.disconnResult != nil {
		s.disconnResult <- nil
		s.disconnResult = nil
	}

	s.state = StateIdle
	if !first {
		s.logInfo("tunnel disconnected", "reason", connectErr)
		s.publish(Event{Type: EventOffline})
	}
	s.armTimer(timerIdle, s.timeouts.Idle)
}

func (s *Session) enterSearching() {
	s.state = StateSearching
	s.armTimer(timerSearch, s.timeouts.Search)

	if s.cfg.RemoteEndpoint != nil {
		s.remoteControl = s.cfg.RemoteEndpoint
		s.enterConnecting()
		return
	}

	if err := s.sendSearchRequest(); err != nil {
		s.logWarn("send SEARCH_REQUEST failed", "error", err)
	}
}

func (s *Session) onSearchResponse(body knxnet.SearchResponseBody, src *net.UDPAddr) {
	if s.state != StateSearching {
		return
	}
	if s.cfg.PhysAddrFilter != 0 && body.DeviceInfo.PhysicalAddress != s.cfg.PhysAddrFilter {
		return
	}

	addr := endpointToUDPAddr(body.Control.Endpoint)
	if body.Control.Endpoint.IsZero() && src != nil {
		addr = src
	}
	s.remoteControl = addr
	s.enterConnecting()
}

func (s *Session) enterConnecting() {
	s.state = StateConnecting
	s.armTimer(timerConnect, s.timeouts.Connect)
	if err := s.sendConnectRequest(); err != nil {
		s.logWarn("send CONNECT_REQUEST failed", "error", err)
	}
}

func (s *Session) onConnectResponse(body knxnet.ConnectResponseBody) {
	if s.state != StateConnecting {
		return
	}

	switch body.State.Status {
	case knxnet.StatusNoError:
		if !body.HasExtra {
			s.logWarn("CONNECT_RESPONSE missing channel data")
			s.enterIdle(fmt.Errorf("session: malformed CONNECT_RESPONSE"))
			return
		}
		s.channelID = body.State.ChannelID
		s.enterConnected()
	case knxnet.StatusNoMoreConnections:
		s.logWarn("gateway refused connection: no free connections")
		s.enterIdle(ErrNoMoreConnections)
	default:
		s.logWarn("CONNECT_RESPONSE error status", "status", body.State.Status)
		s.enterIdle(fmt.Errorf("session: connect refused, status %#x", body.State.Status))
	}
}

func (s *Session) enterConnected() {
	s.outboundSeq = 0
	s.inboundSeq = 0
	s.hbFailures = 0
	s.state = StateConnected

	s.logInfo("tunnel connected", "channelID", s.channelID, "remote", s.remoteControl)
	s.publish(Event{Type: EventOnline})
	if s.connectResult != nil {
		s.connectResult <- nil
		s.connectResult = nil
	}
	s.enterOnline()
}

func (s *Session) enterOnline() {
	s.state = StateOnline
	s.armTimer(timerHeartbeatInterval, s.timeouts.HeartbeatInterval)
	s.replayDeferred()
}

// ---- outbound tunneling ----

func (s *Session) enterOutboundTunneling(dg knxnet.Datagram, ack chan ackResult) {
	s.state = StateOutboundTunneling
	s.inflight = &dg
	s.pending[dg.CorrelationID] = ack
	s.ackRetries = 0
	s.sendInflight()
}

func (s *Session) sendInflight() {
	if err := s.sendTunnelingRequest(*s.inflight); err != nil {
		s.logWarn("send TUNNELING_REQUEST failed", "error", err)
	}
	s.armTimer(timerAck, s.timeouts.Ack)
}

func (s *Session) onTunnelingAck(body knxnet.TunnelingAckBody) {
	if s.state != StateOutboundTunneling || s.inflight == nil {
		return
	}
	if body.State.ChannelID != s.channelID {
		return
	}
	if body.State.SeqNumber != s.outboundSeq {
		return // mismatched seq: ignore, no timer restart
	}

	if body.State.Status == knxnet.StatusNoError {
		s.outboundSeq++
		s.resolveInflight(ackResult{status: body.State.Status})
		s.enterWaiting()
		return
	}

	s.ackRetries++
	if s.ackRetries > 1 {
		err := fmt.Errorf("%w: status %#x", ErrAckTimeout, body.State.Status)
		s.resolveInflight(ackResult{status: body.State.Status, err: err})
		s.enterDisconnecting(err)
		return
	}
	s.sendInflight()
}

func (s *Session) handleAckTimeout() {
	if s.state != StateOutboundTunneling {
		return
	}
	s.ackRetries++
	if s.ackRetries > 1 {
		s.resolveInflight(ackResult{err: ErrAckTimeout})
		s.enterDisconnecting(ErrAckTimeout)
		return
	}
	s.sendInflight()
}

func (s *Session) resolveInflight(res ackResult) {
	if s.inflight == nil {
		return
	}
	if ch, ok := s.pending[s.inflight.CorrelationID]; ok {
		ch <- res
		delete(s.pending, s.inflight.CorrelationID)
	}
	s.inflight = nil
}

// ---- inbound tunneling ----

func (s *Session) onTunnelingRequest(body knxnet.TunnelingRequestBody) {
	if s.state != StateOnline && s.state != StateWaiting {
		s.logDebug("dropping inbound TUNNELING_REQUEST", "state", s.state.String())
		return
	}
	if body.State.ChannelID != s.channelID {
		return
	}
	s.enterInboundTunneling(body)
}

func (s *Session) enterInboundTunneling(body knxnet.TunnelingRequestBody) {
	s.state = StateInboundTunneling

	seq := body.State.SeqNumber
	expected := s.inboundSeq

	if seq != expected && seq != expected-1 {
		s.logDebug("dropping inbound TUNNELING_REQUEST with unexpected sequence",
			"got", seq, "expected", expected)
		s.enterWaiting()
		return
	}

	if err := s.sendTunnelingAck(seq, knxnet.StatusNoError); err != nil {
		s.logWarn("send TUNNELING_ACK failed", "error", err)
	}

	if seq == expected {
		s.inboundSeq++
		s.deliverInbound(body.CEMI)
	}

	s.enterWaiting()
}

func (s *Session) deliverInbound(cemi knxnet.CEMI) {
	if cemi.MsgCode != knxnet.MsgLDataInd && cemi.MsgCode != knxnet.MsgLDataCon {
		return
	}

	apdu := cemi.APDU
	switch apdu.APCI {
	case knxnet.GroupValueWrite, knxnet.GroupValueResponse:
		payload, bits := extractPayload(apdu)
		s.publish(Event{
			Type:      EventGroupValue,
			GroupAddr: cemi.DestAddr,
			GroupText: address.Format(cemi.DestAddr, address.Group, s.cfg.TwoLevel),
			SrcAddr:   cemi.SrcAddr,
			APCI:      apdu.APCI,
			Payload:   payload,
			BitLength: bits,
		})
		if apdu.APCI == knxnet.GroupValueResponse {
			s.resolveGroupWaiters(cemi.DestAddr, groupResult{payload: payload, bitLength: bits})
		}
	}
}

func extractPayload(a knxnet.APDU) ([]byte, int) {
	if a.Payload != nil {
		return a.Payload, len(a.Payload) * 8
	}
	return []byte{a.Data6}, 6
}

func (s *Session) resolveGroupWaiters(addr uint16, res groupResult) {
	waiters := s.groupWaiters[addr]
	delete(s.groupWaiters, addr)
	for _, w := range waiters {
		select {
		case w <- res:
		default:
		}
	}
}

func (s *Session) enterWaiting() {
	s.state = StateWaiting
	s.armTimer(timerWaiting, s.timeouts.Waiting)
}

// ---- heartbeat ----

func (s *Session) enterOutboundConnState() {
	s.state = StateOutboundConnState
	s.armTimer(timerHeartbeatAck, s.timeouts.Heartbeat)
	if err := s.sendConnStateRequest(); err != nil {
		s.logWarn("send CONNECTIONSTATE_REQUEST failed", "error", err)
	}
}

func (s *Session) onConnStateResponse(body knxnet.ConnStateBody) {
	if s.state != StateOutboundConnState {
		return
	}
	if body.State.ChannelID != s.channelID {
		return
	}

	if body.State.Status == knxnet.StatusNoError {
		s.hbFailures = 0
		s.enterWaiting()
		return
	}

	s.hbFailures++
	if s.hbFailures > 3 {
		s.enterDisconnecting(ErrHeartbeatLost)
		return
	}
	if err := s.sendConnStateRequest(); err != nil {
		s.logWarn("resend CONNECTIONSTATE_REQUEST failed", "error", err)
	}
	s.armTimer(timerHeartbeatAck, s.timeouts.Heartbeat)
}

func (s *Session) handleHeartbeatTimeout() {
	if s.state != StateOutboundConnState {
		return
	}
	s.hbFailures++
	if s.hbFailures > 3 {
		s.logWarn("heartbeat lost, disconnecting")
		s.enterDisconnecting(ErrHeartbeatLost)
		return
	}
	if err := s.sendConnStateRequest(); err != nil {
		s.logWarn("resend CONNECTIONSTATE_REQUEST failed", "error", err)
	}
	s.armTimer(timerHeartbeatAck, s.timeouts.Heartbeat)
}

// ---- disconnect ----

// enterDisconnecting starts a graceful teardown. reason, if non-nil, is
// the error that drove the teardown (an ACK/heartbeat failure) and is
// what enterIdle ultimately reports once the DISCONNECT_RESPONSE (or its
// own timeout) arrives. A caller-initiated Disconnect() passes nil.
func (s *Session) enterDisconnecting(reason error) {
	s.state = StateDisconnecting
	s.teardownReason = reason
	s.deferred = nil
	if reason == nil {
		reason = ErrNoResponse
	}
	s.rejectAllPending(reason)
	s.armTimer(timerDisconnect, s.timeouts.Disconnect)
	if err := s.sendDisconnectRequest(); err != nil {
		s.logWarn("send DISCONNECT_REQUEST failed", "error", err)
	}
}

func (s *Session) onDisconnectResponse(body knxnet.ConnStateBody) {
	if s.state != StateDisconnecting {
		return
	}
	if body.State.ChannelID != s.channelID {
		return
	}
	reason := s.teardownReason
	s.teardownReason = nil
	s.enterIdle(reason)
}

func (s *Session) onDisconnectRequest(body knxnet.ConnStateBody) {
	if s.state == StateIdle || s.state == StateUninitialized {
		return
	}
	if body.State.ChannelID != s.channelID {
		return
	}

	s.logWarn("gateway sent DISCONNECT_REQUEST")
	if err := s.sendDisconnectResponse(); err != nil {
		s.logDebug("send DISCONNECT_RESPONSE failed", "error", err)
	}
	s.enterIdle(ErrNoResponse)
}

// ---- teardown ----

// rejectAllPending fails every in-flight ACK wait, group-value waiter,
// and deferred API request with err. It never touches connectResult or
// disconnResult; callers resolve those explicitly so a single request
// is never sent a result twice.
func (s *Session) rejectAllPending(err error) {
	if s.inflight != nil {
		if ch, ok := s.pending[s.inflight.CorrelationID]; ok {
			ch <- ackResult{err: err}
			delete(s.pending, s.inflight.CorrelationID)
		}
		s.inflight = nil
	}
	for id, ch := range s.pending {
		select {
		case ch <- ackResult{err: err}:
		default:
		}
		delete(s.pending, id)
	}

	for addr, waiters := range s.groupWaiters {
		for _, w := range waiters {
			select {
			case w <- groupResult{err: err}:
			default:
			}
		}
		delete(s.groupWaiters, addr)
	}

	for _, in := range s.deferred {
		switch v := in.(type) {
		case inputOutbound:
			select {
			case v.ack <- ackResult{err: err}:
			default:
			}
		case inputRegisterWaiter:
			select {
			case v.result <- groupResult{err: err}:
			default:
			}
		}
	}
	s.deferred = nil
}
