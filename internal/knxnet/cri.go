package knxnet

import "fmt"

// CRILength is the fixed size of a Connection Request Information block.
const CRILength = 4

// Connection types a CRI may declare.
const (
	ConnTypeDeviceMgmt byte = 0x03 // accepted on read, never built
	ConnTypeTunnel     byte = 0x04 // the only type this stack requests
)

// KNXLayerLinkLayer is the only KNX layer this stack requests.
const KNXLayerLinkLayer byte = 0x02

// CRI is Connection Request Information, carried in CONNECT_REQUEST.
type CRI struct {
	ConnectionType byte
	KNXLayer       byte
}

// ReadCRI parses a CRI from the start of buffer.
func ReadCRI(buffer []byte) (CRI, int, error) {
	if len(buffer) < CRILength {
		return CRI{}, 0, fmt.Errorf("%w: CRI needs %d bytes", ErrIncompletePacket, CRILength)
	}
	if buffer[0] != CRILength {
		return CRI{}, 0, fmt.Errorf("%w: CRI length byte must be %d", ErrIncompletePacket, CRILength)
	}

	return CRI{
		ConnectionType: buffer[1],
		KNXLayer:       buffer[2],
		// buffer[3] is reserved.
	}, CRILength, nil
}

// WriteCRI serialises a CRI into buffer.
func WriteCRI(c CRI, buffer []byte) (int, error) {
	if len(buffer) < CRILength {
		return 0, fmt.Errorf("%w: buffer too small for CRI", ErrIncompletePacket)
	}

	buffer[0] = CRILength
	buffer[1] = c.ConnectionType
	buffer[2] = c.KNXLayer
	buffer[3] = 0

	return CRILength, nil
}
