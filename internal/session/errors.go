package session

import "errors"

// Domain errors for the connection FSM.
var (
	// ErrNoMoreConnections is returned when the gateway refuses a
	// CONNECT_REQUEST with E_NO_MORE_CONNECTIONS.
	ErrNoMoreConnections = errors.New("session: gateway has no free connections")

	// ErrAckTimeout is returned when an outbound tunneling request gets
	// no TUNNELING_ACK within the retry budget.
	ErrAckTimeout = errors.New("session: tunneling ack timeout")

	// ErrHeartbeatLost is returned when CONNECTIONSTATE_REQUEST retries
	// are exhausted and the session tears the connection down.
	ErrHeartbeatLost = errors.New("session: heartbeat lost")

	// ErrNoResponse is returned when a caller's request completes
	// without ever reaching an ACK or response (connection torn down
	// mid-flight).
	ErrNoResponse = errors.New("session: no response")

	// ErrClosed is delivered to every request still waiting on an ACK or
	// a group response when the session's event loop stops.
	ErrClosed = errors.New("session: closed")

	// ErrRequestTimeout is returned when a caller-supplied timeout
	// elapses before the FSM resolves the request.
	ErrRequestTimeout = errors.New("session: request timed out")
)
