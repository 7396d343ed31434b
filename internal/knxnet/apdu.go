package knxnet

import (
	"encoding/binary"
	"fmt"
)

// APCI enumerates the application-layer control codes this stack reads
// and writes. Only the group-value operations are in scope; anything
// else decodes as ErrUnknownAPCI.
type APCI uint8

const (
	GroupValueRead     APCI = 0x0
	GroupValueResponse APCI = 0x1
	GroupValueWrite    APCI = 0x2
)

func (a APCI) String() string {
	switch a {
	case GroupValueRead:
		return "GroupValue_Read"
	case GroupValueResponse:
		return "GroupValue_Response"
	case GroupValueWrite:
		return "GroupValue_Write"
	default:
		return fmt.Sprintf("APCI(%#x)", uint8(a))
	}
}

const (
	minAPDULength = 3  // 1 length byte + 2-byte TPCI/APCI/data word
	maxAPDULength = 17 // 1 length byte + 2-byte word + 14 payload bytes
	maxEmbedData  = 63 // 6 bits
	maxPayload    = 14
)

// APDU is the Application Protocol Data Unit carried by a CEMI frame:
// a 6-bit TPCI, a 4-bit APCI, and either a 6-bit embedded value or a
// 1-14 byte payload following the TPCI/APCI word.
type APDU struct {
	TPCI    byte
	APCI    APCI
	Payload []byte // nil when the value is embedded in Data6
	Data6   byte   // valid only when Payload is nil
}

// Len returns the number of bytes Write(a) would emit.
func (a APDU) Len() int {
	if a.Payload == nil {
		return 3
	}
	return 3 + len(a.Payload)
}

// ReadAPDU parses an APDU from the start of buffer. buffer must begin
// with the length byte L, per the protocol's L+1-further-bytes rule.
func ReadAPDU(buffer []byte) (APDU, int, error) {
	if len(buffer) < 1 {
		return APDU{}, 0, fmt.Errorf("%w: missing APDU length byte", ErrIncompletePacket)
	}

	l := int(buffer[0])
	total := 1 + l + 1
	if total < minAPDULength || total > maxAPDULength {
		return APDU{}, 0, fmt.Errorf("%w: %d", ErrInvalidAPDULength, total)
	}
	if len(buffer) < total {
		return APDU{}, 0, fmt.Errorf("%w: APDU needs %d bytes, have %d", ErrIncompletePacket, total, len(buffer))
	}

	word := binary.BigEndian.Uint16(buffer[1:3])
	tpci := byte(word >> 10)
	apci := APCI((word >> 6) & 0x0F)
	data6 := byte(word & 0x3F)
	if apci > GroupValueWrite {
		return APDU{}, 0, fmt.Errorf("%w: %s", ErrUnknownAPCI, apci)
	}

	var a APDU
	a.TPCI = tpci
	a.APCI = apci

	if l == 1 {
		a.Data6 = data6
	} else {
		a.Payload = append([]byte(nil), buffer[3:total]...)
	}

	return a, total, nil
}

// WriteAPDU serialises an APDU into buffer, returning the number of
// bytes written.
func WriteAPDU(a APDU, buffer []byte) (int, error) {
	if a.APCI > GroupValueWrite {
		return 0, fmt.Errorf("%w: %s", ErrUnknownAPCI, a.APCI)
	}
	if a.Payload == nil {
		if a.Data6 > maxEmbedData {
			return 0, fmt.Errorf("%w: embedded value %d exceeds 6 bits", ErrInvalidPayload, a.Data6)
		}

		n := a.Len()
		if len(buffer) < n {
			return 0, fmt.Errorf("%w: buffer too small for APDU", ErrIncompletePacket)
		}

		word := uint16(a.TPCI&0x3F)<<10 | uint16(a.APCI&0x0F)<<6 | uint16(a.Data6&0x3F)
		buffer[0] = 1 // L = 1
		binary.BigEndian.PutUint16(buffer[1:3], word)
		return n, nil
	}

	if len(a.Payload) < 1 || len(a.Payload) > maxPayload {
		return 0, fmt.Errorf("%w: payload must be 1-%d bytes, got %d", ErrInvalidPayload, maxPayload, len(a.Payload))
	}

	n := a.Len()
	if len(buffer) < n {
		return 0, fmt.Errorf("%w: buffer too small for APDU", ErrIncompletePacket)
	}

	l := 1 + len(a.Payload)
	word := uint16(a.TPCI&0x3F)<<10 | uint16(a.APCI&0x0F)<<6
	buffer[0] = byte(l)
	binary.BigEndian.PutUint16(buffer[1:3], word)
	copy(buffer[3:], a.Payload)

	return n, nil
}
