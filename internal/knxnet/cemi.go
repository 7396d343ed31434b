package knxnet

import (
	"encoding/binary"
	"fmt"
)

// CEMI message codes relevant to tunneled group-address traffic.
const (
	MsgLDataReq byte = 0x11
	MsgLDataInd byte = 0x29
	MsgLDataCon byte = 0x2E
)

// Priority levels for ctrl1.priority.
const (
	PriorityLow    byte = 0x3
	PrioritySystem byte = 0x0
)

// Destination address types for ctrl2.destAddrType.
const (
	DestPhysical byte = 0
	DestGroup    byte = 1
)

// DefaultHopCount is the hop count stamped into outbound frames.
const DefaultHopCount byte = 6

// Control1 is the first CEMI control byte, bit-packed MSB->LSB as
// frameType(1) reserved(1) repeat(1) broadcast(1) priority(2)
// acknowledge(1) confirm(1).
type Control1 struct {
	StandardFrame bool
	DoNotRepeat   bool
	Broadcast     bool
	Priority      byte // 2 bits
	Acknowledge   bool
	Confirm       bool
}

func (c Control1) pack() byte {
	var b byte
	if c.StandardFrame {
		b |= 1 << 7
	}
	// bit 6 reserved, left 0.
	if c.DoNotRepeat {
		b |= 1 << 5
	}
	if c.Broadcast {
		b |= 1 << 4
	}
	b |= (c.Priority & 0x3) << 2
	if c.Acknowledge {
		b |= 1 << 1
	}
	if c.Confirm {
		b |= 1
	}
	return b
}

func unpackControl1(b byte) Control1 {
	return Control1{
		StandardFrame: b&(1<<7) != 0,
		DoNotRepeat:   b&(1<<5) != 0,
		Broadcast:     b&(1<<4) != 0,
		Priority:      (b >> 2) & 0x3,
		Acknowledge:   b&(1<<1) != 0,
		Confirm:       b&1 != 0,
	}
}

// Control2 is the second CEMI control byte: destAddrType(1) hopCount(3)
// extendedFrame(4).
type Control2 struct {
	DestAddrType  byte // 0 physical, 1 group
	HopCount      byte // 3 bits
	ExtendedFrame byte // 4 bits
}

func (c Control2) pack() byte {
	return (c.DestAddrType&0x1)<<7 | (c.HopCount&0x7)<<4 | (c.ExtendedFrame & 0xF)
}

func unpackControl2(b byte) Control2 {
	return Control2{
		DestAddrType:  (b >> 7) & 0x1,
		HopCount:      (b >> 4) & 0x7,
		ExtendedFrame: b & 0xF,
	}
}

// CEMI is the Common External Message Interface frame carried inside a
// TUNNELING_REQUEST or ROUTING_INDICATION body.
type CEMI struct {
	MsgCode  byte
	Ctrl1    Control1
	Ctrl2    Control2
	SrcAddr  uint16
	DestAddr uint16
	APDU     APDU // only meaningful for L_Data.req/.ind/.con
}

// Len returns the number of bytes Write(c) would emit.
func (c CEMI) Len() int {
	n := 1 + 1 + 1 + 1 + 2 + 2 // msgcode, addinfoLength, ctrl1, ctrl2, src, dest
	if isLData(c.MsgCode) {
		n += c.APDU.Len()
	}
	return n
}

func isLData(msgCode byte) bool {
	return msgCode == MsgLDataReq || msgCode == MsgLDataInd || msgCode == MsgLDataCon
}

// ReadCEMI parses a CEMI frame from the start of buffer.
func ReadCEMI(buffer []byte) (CEMI, int, error) {
	const headFixed = 6
	if len(buffer) < headFixed {
		return CEMI{}, 0, fmt.Errorf("%w: CEMI needs at least %d bytes", ErrIncompletePacket, headFixed)
	}

	var c CEMI
	c.MsgCode = buffer[0]
	addInfoLen := int(buffer[1])
	offset := 2 + addInfoLen
	if len(buffer) < offset+4 {
		return CEMI{}, 0, fmt.Errorf("%w: CEMI additional info overruns buffer", ErrIncompletePacket)
	}

	c.Ctrl1 = unpackControl1(buffer[offset])
	c.Ctrl2 = unpackControl2(buffer[offset+1])
	c.SrcAddr = binary.BigEndian.Uint16(buffer[offset+2 : offset+4])
	offset += 4

	if len(buffer) < offset+2 {
		return CEMI{}, 0, fmt.Errorf("%w: CEMI destination address overruns buffer", ErrIncompletePacket)
	}
	c.DestAddr = binary.BigEndian.Uint16(buffer[offset : offset+2])
	offset += 2

	if !isLData(c.MsgCode) {
		return c, offset, nil
	}

	apdu, n, err := ReadAPDU(buffer[offset:])
	if err != nil {
		return CEMI{}, 0, err
	}
	c.APDU = apdu
	offset += n

	return c, offset, nil
}

// WriteCEMI serialises a CEMI frame into buffer.
func WriteCEMI(c CEMI, buffer []byte) (int, error) {
	n := c.Len()
	if len(buffer) < n {
		return 0, fmt.Errorf("%w: buffer too small for CEMI", ErrIncompletePacket)
	}

	buffer[0] = c.MsgCode
	buffer[1] = 0 // addinfoLength
	buffer[2] = c.Ctrl1.pack()
	buffer[3] = c.Ctrl2.pack()
	binary.BigEndian.PutUint16(buffer[4:6], c.SrcAddr)
	binary.BigEndian.PutUint16(buffer[6:8], c.DestAddr)

	if !isLData(c.MsgCode) {
		return 8, nil
	}

	apduN, err := WriteAPDU(c.APDU, buffer[8:])
	if err != nil {
		return 0, err
	}

	return 8 + apduN, nil
}
