package knxnet

import "fmt"

// ConnStateLength is the fixed size of a ConnState block.
const ConnStateLength = 2

// Status codes relevant to connection-state handling.
const (
	StatusNoError           byte = 0x00
	StatusNoMoreConnections byte = 0x24
)

// ConnState carries the channel id and status shared by CONNECT_RESPONSE,
// CONNECTIONSTATE_REQUEST/RESPONSE and DISCONNECT_REQUEST/RESPONSE.
type ConnState struct {
	ChannelID byte
	Status    byte
}

// ReadConnState parses a ConnState from the start of buffer.
func ReadConnState(buffer []byte) (ConnState, int, error) {
	if len(buffer) < ConnStateLength {
		return ConnState{}, 0, fmt.Errorf("%w: ConnState needs %d bytes", ErrIncompletePacket, ConnStateLength)
	}
	return ConnState{ChannelID: buffer[0], Status: buffer[1]}, ConnStateLength, nil
}

// WriteConnState serialises a ConnState into buffer.
func WriteConnState(c ConnState, buffer []byte) (int, error) {
	if len(buffer) < ConnStateLength {
		return 0, fmt.Errorf("%w: buffer too small for ConnState", ErrIncompletePacket)
	}
	buffer[0] = c.ChannelID
	buffer[1] = c.Status
	return ConnStateLength, nil
}
