package knxnet

import (
	"encoding/binary"
	"fmt"
)

// HeaderLength is the fixed size of a KNXnet/IP frame header.
const HeaderLength = 6

// ProtocolVersion is the only KNXnet/IP protocol version this stack emits
// or accepts.
const ProtocolVersion = 0x10

// ServiceType identifies the body that follows a Header.
type ServiceType uint16

// Recognised service types, per the KNX standard.
const (
	SearchRequest           ServiceType = 0x0201
	SearchResponse          ServiceType = 0x0202
	ConnectRequest          ServiceType = 0x0205
	ConnectResponse         ServiceType = 0x0206
	ConnectionstateRequest  ServiceType = 0x0207
	ConnectionstateResponse ServiceType = 0x0208
	DisconnectRequest       ServiceType = 0x0209
	DisconnectResponse      ServiceType = 0x020A
	TunnelingRequest        ServiceType = 0x0420
	TunnelingAck            ServiceType = 0x0421
	RoutingIndication       ServiceType = 0x0530
)

func (s ServiceType) String() string {
	switch s {
	case SearchRequest:
		return "SEARCH_REQUEST"
	case SearchResponse:
		return "SEARCH_RESPONSE"
	case ConnectRequest:
		return "CONNECT_REQUEST"
	case ConnectResponse:
		return "CONNECT_RESPONSE"
	case ConnectionstateRequest:
		return "CONNECTIONSTATE_REQUEST"
	case ConnectionstateResponse:
		return "CONNECTIONSTATE_RESPONSE"
	case DisconnectRequest:
		return "DISCONNECT_REQUEST"
	case DisconnectResponse:
		return "DISCONNECT_RESPONSE"
	case TunnelingRequest:
		return "TUNNELING_REQUEST"
	case TunnelingAck:
		return "TUNNELING_ACK"
	case RoutingIndication:
		return "ROUTING_INDICATION"
	default:
		return fmt.Sprintf("ServiceType(0x%04x)", uint16(s))
	}
}

// Header is the fixed 6-byte preamble of every KNXnet/IP frame.
type Header struct {
	ServiceType ServiceType
	TotalLength uint16
}

// ReadHeader parses the header at the start of buffer.
func ReadHeader(buffer []byte) (Header, int, error) {
	if len(buffer) < HeaderLength {
		return Header{}, 0, fmt.Errorf("%w: need %d header bytes, have %d", ErrIncompletePacket, HeaderLength, len(buffer))
	}
	if buffer[0] != HeaderLength || buffer[1] != ProtocolVersion {
		return Header{}, 0, fmt.Errorf("%w: bad header preamble", ErrIncompletePacket)
	}

	h := Header{
		ServiceType: ServiceType(binary.BigEndian.Uint16(buffer[2:4])),
		TotalLength: binary.BigEndian.Uint16(buffer[4:6]),
	}

	if int(h.TotalLength) < HeaderLength {
		return Header{}, 0, fmt.Errorf("%w: totalLength %d shorter than header", ErrIncompletePacket, h.TotalLength)
	}
	if len(buffer) < int(h.TotalLength) {
		return Header{}, 0, fmt.Errorf("%w: need %d bytes, have %d", ErrIncompletePacket, h.TotalLength, len(buffer))
	}

	return h, HeaderLength, nil
}

// WriteHeader writes the header into buffer, which must have at least
// HeaderLength bytes available.
func WriteHeader(h Header, buffer []byte) (int, error) {
	if len(buffer) < HeaderLength {
		return 0, fmt.Errorf("%w: buffer too small for header", ErrIncompletePacket)
	}
	buffer[0] = HeaderLength
	buffer[1] = ProtocolVersion
	binary.BigEndian.PutUint16(buffer[2:4], uint16(h.ServiceType))
	binary.BigEndian.PutUint16(buffer[4:6], h.TotalLength)
	return HeaderLength, nil
}
