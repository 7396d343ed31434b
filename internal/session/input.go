package session

import (
	"github.com/nerrad567/knxnet/internal/knxnet"
)

// The values sent on Session.input are the API requests below; the event
// loop type-switches on them. Each carries a result channel the loop
// resolves exactly once. Wire datagrams do not pass through Session.input:
// the loop reads them from the transport's Inbound channel.

type ackResult struct {
	status byte
	err    error
}

type groupResult struct {
	payload   []byte
	bitLength int
	err       error
}

// inputConnect requests the search->connect path.
type inputConnect struct {
	result chan error
}

// inputDisconnect requests a graceful teardown.
type inputDisconnect struct {
	result chan error
}

// inputOutbound requests a tunneling round trip for dg. ack receives the
// final ACK outcome (success or exhausted retries).
type inputOutbound struct {
	dg  knxnet.Datagram
	ack chan ackResult
}

// inputRegisterWaiter registers interest in the next GroupValue_Response
// on addr; an inbound GroupValue_Write does not resolve it.
type inputRegisterWaiter struct {
	addr   uint16
	result chan groupResult
}

// timerKind names which armed timer fired; the loop only ever has one
// timer armed per state so this disambiguates nothing by itself but
// keeps handleTimeout self-documenting.
type timerKind int

const (
	timerNone timerKind = iota
	timerIdle
	timerSearch
	timerConnect
	timerAck
	timerHeartbeatInterval
	timerHeartbeatAck
	timerWaiting
	timerDisconnect
)
