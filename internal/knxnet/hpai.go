package knxnet

import (
	"encoding/binary"
	"fmt"
)

// HPAILength is the fixed, self-declared size of an HPAI structure.
const HPAILength = 8

// Transport protocols an HPAI may declare.
const (
	ProtocolUDP byte = 0x01
	ProtocolTCP byte = 0x02 // never accepted on read
)

// Endpoint is an IPv4 address and UDP port, the payload of an HPAI.
// The zero value, 0.0.0.0:0, means "use the sender's real endpoint".
type Endpoint struct {
	IP   [4]byte
	Port uint16
}

// IsZero reports whether the endpoint is the "fill me in" placeholder.
func (e Endpoint) IsZero() bool {
	return e.IP == [4]byte{} && e.Port == 0
}

func (e Endpoint) String() string {
	return fmt.Sprintf("%d.%d.%d.%d:%d", e.IP[0], e.IP[1], e.IP[2], e.IP[3], e.Port)
}

// HPAI is Host Protocol Address Information: a tagged UDP/TCP endpoint.
type HPAI struct {
	Protocol byte
	Endpoint Endpoint
}

// ReadHPAI parses an HPAI from the start of buffer.
func ReadHPAI(buffer []byte) (HPAI, int, error) {
	if len(buffer) < HPAILength {
		return HPAI{}, 0, fmt.Errorf("%w: HPAI needs %d bytes", ErrIncompletePacket, HPAILength)
	}
	if buffer[0] != HPAILength {
		return HPAI{}, 0, fmt.Errorf("%w: HPAI length byte must be %d", ErrIncompletePacket, HPAILength)
	}

	protocol := buffer[1]
	if protocol == ProtocolTCP {
		return HPAI{}, 0, ErrUnsupportedTransport
	}

	var hpai HPAI
	hpai.Protocol = protocol
	copy(hpai.Endpoint.IP[:], buffer[2:6])
	hpai.Endpoint.Port = binary.BigEndian.Uint16(buffer[6:8])

	return hpai, HPAILength, nil
}

// WriteHPAI serialises an HPAI into buffer.
func WriteHPAI(h HPAI, buffer []byte) (int, error) {
	if len(buffer) < HPAILength {
		return 0, fmt.Errorf("%w: buffer too small for HPAI", ErrIncompletePacket)
	}
	if h.Protocol == ProtocolTCP {
		return 0, ErrUnsupportedTransport
	}

	buffer[0] = HPAILength
	buffer[1] = h.Protocol
	copy(buffer[2:6], h.Endpoint.IP[:])
	binary.BigEndian.PutUint16(buffer[6:8], h.Endpoint.Port)

	return HPAILength, nil
}
