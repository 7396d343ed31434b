package knxnet

import (
	"errors"
	"testing"
)

func TestFrameRoundTripTunnelingRequest(t *testing.T) {
	f := Frame{
		Header: Header{ServiceType: TunnelingRequest},
		Body: TunnelingRequestBody{
			State: TunnState{ChannelID: 7, SeqNumber: 3, Status: StatusNoError},
			CEMI: CEMI{
				MsgCode: MsgLDataReq,
				Ctrl1:   Control1{StandardFrame: true, DoNotRepeat: true, Broadcast: true, Priority: PriorityLow},
				Ctrl2:   Control2{DestAddrType: DestGroup, HopCount: DefaultHopCount},
				SrcAddr:  0xF0F0,
				DestAddr: 0x0A03,
				APDU:     APDU{APCI: GroupValueWrite, Data6: 1},
			},
		},
	}

	buf, err := WriteFrame(f)
	if err != nil {
		t.Fatalf("WriteFrame error = %v", err)
	}
	if total := int(buf[4])<<8 | int(buf[5]); total != len(buf) {
		t.Fatalf("TotalLength %d != bytes emitted %d", total, len(buf))
	}

	got, n, err := ReadFrame(buf)
	if err != nil {
		t.Fatalf("ReadFrame error = %v", err)
	}
	if n != len(buf) {
		t.Fatalf("ReadFrame consumed %d, want %d", n, len(buf))
	}

	body, ok := got.Body.(TunnelingRequestBody)
	if !ok {
		t.Fatalf("Body type = %T, want TunnelingRequestBody", got.Body)
	}
	if body.State.SeqNumber != 3 || body.CEMI.DestAddr != 0x0A03 || body.CEMI.APDU.Data6 != 1 {
		t.Fatalf("round trip mismatch: %+v", body)
	}
}

func TestFrameRoundTripConnectResponseNoExtra(t *testing.T) {
	f := Frame{
		Header: Header{ServiceType: ConnectResponse},
		Body:   ConnectResponseBody{State: ConnState{ChannelID: 7, Status: StatusNoError}},
	}
	buf, err := WriteFrame(f)
	if err != nil {
		t.Fatalf("WriteFrame error = %v", err)
	}

	got, _, err := ReadFrame(buf)
	if err != nil {
		t.Fatalf("ReadFrame error = %v", err)
	}
	body := got.Body.(ConnectResponseBody)
	if body.State.ChannelID != 7 || body.HasExtra {
		t.Fatalf("round trip mismatch: %+v", body)
	}
}

func TestHPAIRejectsTCP(t *testing.T) {
	buf := []byte{HPAILength, ProtocolTCP, 0, 0, 0, 0, 0, 0}
	_, _, err := ReadHPAI(buf)
	if !errors.Is(err, ErrUnsupportedTransport) {
		t.Fatalf("error = %v, want ErrUnsupportedTransport", err)
	}
}

func TestDeviceInfoRejectsUnknownDescription(t *testing.T) {
	buf := make([]byte, DeviceInfoLength)
	buf[0] = DeviceInfoLength
	buf[1] = 0x02 // not DescriptionTypeDeviceInfo

	_, _, err := ReadDeviceInfo(buf)
	if !errors.Is(err, ErrUnknownDescription) {
		t.Fatalf("error = %v, want ErrUnknownDescription", err)
	}
}

func TestReadFrameIncompletePacket(t *testing.T) {
	buf := []byte{HeaderLength, ProtocolVersion, 0x04, 0x21, 0x00, 0x20} // declares 32 bytes, has 6
	_, _, err := ReadFrame(buf)
	if !errors.Is(err, ErrIncompletePacket) {
		t.Fatalf("error = %v, want ErrIncompletePacket", err)
	}
}

func TestReadFrameUnknownServiceType(t *testing.T) {
	buf := make([]byte, HeaderLength)
	_, _ = WriteHeader(Header{ServiceType: 0x9999, TotalLength: HeaderLength}, buf)

	_, _, err := ReadFrame(buf)
	if !errors.Is(err, ErrUnknownServiceType) {
		t.Fatalf("error = %v, want ErrUnknownServiceType", err)
	}
}
