package knxnet

import (
	"github.com/google/uuid"

	"github.com/nerrad567/knxnet/internal/address"
)

// Options bundles the datagram-building choices a session is configured
// with; see the configuration table for defaults.
type Options struct {
	// SuppressAckLData, when false, sets ctrl1.acknowledge on outbound
	// L_Data.req frames. Default true.
	SuppressAckLData bool

	// UseTunneling, when true, sends outbound group operations as
	// TUNNELING_REQUEST; when false, as ROUTING_INDICATION (no ACK).
	// Default true.
	UseTunneling bool

	// TwoLevelAddressing selects the group-address text format used by
	// the caller-facing API; it does not affect the on-wire form.
	TwoLevelAddressing bool

	// PhysAddr is the source physical address stamped into outbound
	// CEMI frames, already converted to its 16-bit on-wire form.
	PhysAddr uint16
}

// DefaultOptions returns the configuration defaults from the external
// interfaces table.
func DefaultOptions() Options {
	physAddr, _ := address.Parse("15.15.15", address.Physical, false)
	return Options{
		SuppressAckLData: true,
		UseTunneling:     true,
		PhysAddr:         physAddr,
	}
}

// Datagram is an outbound tunneling request in progress: a CEMI frame
// plus the bookkeeping the FSM needs to send and correlate it.
type Datagram struct {
	CorrelationID uuid.UUID
	CEMI          CEMI
}

// NewDatagram builds the skeleton CEMI frame described in the datagram
// builder's defaults: standard frame, do-not-repeat, broadcast, low
// priority, group destination, DefaultHopCount, GroupValue_Write with a
// zero payload.
func NewDatagram(opts Options) Datagram {
	ack := !opts.SuppressAckLData

	return Datagram{
		CorrelationID: uuid.New(),
		CEMI: CEMI{
			MsgCode: MsgLDataReq,
			Ctrl1: Control1{
				StandardFrame: true,
				DoNotRepeat:   true,
				Broadcast:     true,
				Priority:      PriorityLow,
				Acknowledge:   ack,
			},
			Ctrl2: Control2{
				DestAddrType: DestGroup,
				HopCount:     DefaultHopCount,
			},
			SrcAddr: opts.PhysAddr,
			APDU:    APDU{APCI: GroupValueWrite, Data6: 0},
		},
	}
}

// MakeReadRequest turns dg into a group-value read of groupAddr.
func (dg *Datagram) MakeReadRequest(groupAddr uint16) {
	dg.CEMI.DestAddr = groupAddr
	dg.CEMI.APDU = APDU{APCI: GroupValueRead}
}

// MakeWriteRawRequest turns dg into a group-value write, bypassing any
// DPT encoding: raw holds the pre-encoded payload bytes (1-14 bytes) or,
// when bitLength<=6, the embedded 6-bit value in raw[0].
func (dg *Datagram) MakeWriteRawRequest(groupAddr uint16, raw []byte, bitLength int) {
	dg.CEMI.DestAddr = groupAddr
	dg.CEMI.APDU = buildAPDU(GroupValueWrite, raw, bitLength)
}

// MakeRespondRawRequest turns dg into a group-value response, bypassing
// any DPT encoding; see MakeWriteRawRequest for the raw/bitLength
// convention.
func (dg *Datagram) MakeRespondRawRequest(groupAddr uint16, raw []byte, bitLength int) {
	dg.CEMI.DestAddr = groupAddr
	dg.CEMI.APDU = buildAPDU(GroupValueResponse, raw, bitLength)
}

func buildAPDU(apci APCI, raw []byte, bitLength int) APDU {
	if bitLength <= 6 {
		var v byte
		if len(raw) > 0 {
			v = raw[0] & 0x3F
		}
		return APDU{APCI: apci, Data6: v}
	}
	return APDU{APCI: apci, Payload: raw}
}
