package knxnet

import "fmt"

// TunnStateLength is the fixed size of a TunnState block.
const TunnStateLength = 4

// TunnState accompanies every TUNNELING_REQUEST and TUNNELING_ACK,
// carrying the channel id and the 8-bit sequence number.
type TunnState struct {
	ChannelID byte
	SeqNumber byte
	Status    byte
}

// ReadTunnState parses a TunnState from the start of buffer.
func ReadTunnState(buffer []byte) (TunnState, int, error) {
	if len(buffer) < TunnStateLength {
		return TunnState{}, 0, fmt.Errorf("%w: TunnState needs %d bytes", ErrIncompletePacket, TunnStateLength)
	}
	if buffer[0] != TunnStateLength {
		return TunnState{}, 0, fmt.Errorf("%w: TunnState length byte must be %d", ErrIncompletePacket, TunnStateLength)
	}

	return TunnState{
		ChannelID: buffer[1],
		SeqNumber: buffer[2],
		Status:    buffer[3],
	}, TunnStateLength, nil
}

// WriteTunnState serialises a TunnState into buffer.
func WriteTunnState(t TunnState, buffer []byte) (int, error) {
	if len(buffer) < TunnStateLength {
		return 0, fmt.Errorf("%w: buffer too small for TunnState", ErrIncompletePacket)
	}

	buffer[0] = TunnStateLength
	buffer[1] = t.ChannelID
	buffer[2] = t.SeqNumber
	buffer[3] = t.Status

	return TunnStateLength, nil
}
