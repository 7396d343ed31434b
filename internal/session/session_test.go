package session

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/nerrad567/knxnet/internal/knxnet"
)

// testGateway is a minimal hand-built KNXnet/IP gateway used to drive the
// FSM over a real loopback UDP socket without needing a real device.
type testGateway struct {
	conn      *net.UDPConn
	channelID byte
}

func newTestGateway(t *testing.T) *testGateway {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	if err != nil {
		t.Fatalf("listen gateway: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return &testGateway{conn: conn, channelID: 7}
}

func (g *testGateway) addr() *net.UDPAddr {
	return g.conn.LocalAddr().(*net.UDPAddr)
}

func (g *testGateway) hpai() knxnet.HPAI {
	a := g.addr()
	var ip [4]byte
	copy(ip[:], a.IP.To4())
	return knxnet.HPAI{Protocol: knxnet.ProtocolUDP, Endpoint: knxnet.Endpoint{IP: ip, Port: uint16(a.Port)}}
}

func (g *testGateway) readFrame(t *testing.T) (knxnet.Frame, *net.UDPAddr) {
	t.Helper()
	buf := make([]byte, 2048)
	g.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, addr, err := g.conn.ReadFromUDP(buf)
	if err != nil {
		t.Fatalf("gateway read: %v", err)
	}
	frame, _, err := knxnet.ReadFrame(buf[:n])
	if err != nil {
		t.Fatalf("gateway parse frame: %v", err)
	}
	return frame, addr
}

func (g *testGateway) send(t *testing.T, st knxnet.ServiceType, body knxnet.Body, to *net.UDPAddr) {
	t.Helper()
	buf, err := knxnet.WriteFrame(knxnet.Frame{Header: knxnet.Header{ServiceType: st}, Body: body})
	if err != nil {
		t.Fatalf("build frame: %v", err)
	}
	if _, err := g.conn.WriteToUDP(buf, to); err != nil {
		t.Fatalf("gateway write: %v", err)
	}
}

// acceptConnect reads a CONNECT_REQUEST and responds accepting it,
// returning the client's control address for subsequent sends.
func (g *testGateway) acceptConnect(t *testing.T) *net.UDPAddr {
	t.Helper()
	frame, addr := g.readFrame(t)
	if frame.Header.ServiceType != knxnet.ConnectRequest {
		t.Fatalf("service type = %s, want CONNECT_REQUEST", frame.Header.ServiceType)
	}
	body := knxnet.ConnectResponseBody{
		State:    knxnet.ConnState{ChannelID: g.channelID, Status: knxnet.StatusNoError},
		HasExtra: true,
		Control:  g.hpai(),
		CRI:      knxnet.CRI{ConnectionType: knxnet.ConnTypeTunnel, KNXLayer: knxnet.KNXLayerLinkLayer},
	}
	g.send(t, knxnet.ConnectResponse, body, addr)
	return addr
}

func testTimeouts() Timeouts {
	return Timeouts{
		Idle:              50 * time.Millisecond,
		Search:            200 * time.Millisecond,
		Connect:           300 * time.Millisecond,
		Ack:               100 * time.Millisecond,
		Heartbeat:         100 * time.Millisecond,
		HeartbeatInterval: 5 * time.Second, // kept long so it never fires mid-test
		Waiting:           20 * time.Millisecond,
		Disconnect:        200 * time.Millisecond,
	}
}

func newTestSession(t *testing.T, remote *net.UDPAddr) *Session {
	t.Helper()
	ctx := context.Background()
	s, err := New(ctx, Config{
		RemoteEndpoint: remote,
		Timeouts:       testTimeouts(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestConnectHappyPath(t *testing.T) {
	gw := newTestGateway(t)
	s := newTestSession(t, gw.addr())

	done := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		done <- s.Connect(ctx)
	}()

	gw.acceptConnect(t)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Connect: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Connect did not return")
	}
}

func TestConnectNoMoreConnections(t *testing.T) {
	gw := newTestGateway(t)
	s := newTestSession(t, gw.addr())

	done := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		done <- s.Connect(ctx)
	}()

	frame, addr := gw.readFrame(t)
	if frame.Header.ServiceType != knxnet.ConnectRequest {
		t.Fatalf("service type = %s, want CONNECT_REQUEST", frame.Header.ServiceType)
	}
	body := knxnet.ConnectResponseBody{
		State: knxnet.ConnState{Status: knxnet.StatusNoMoreConnections},
	}
	gw.send(t, knxnet.ConnectResponse, body, addr)

	select {
	case err := <-done:
		if err != ErrNoMoreConnections {
			t.Fatalf("err = %v, want ErrNoMoreConnections", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Connect did not return")
	}
}

func TestWriteRawAckedRoundTrip(t *testing.T) {
	gw := newTestGateway(t)
	s := newTestSession(t, gw.addr())

	connDone := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		connDone <- s.Connect(ctx)
	}()
	clientAddr := gw.acceptConnect(t)
	if err := <-connDone; err != nil {
		t.Fatalf("Connect: %v", err)
	}

	writeDone := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		writeDone <- s.WriteRaw(ctx, 0x0A03, []byte{1}, 1, time.Second)
	}()

	frame, _ := gw.readFrame(t)
	body, ok := frame.Body.(knxnet.TunnelingRequestBody)
	if !ok {
		t.Fatalf("body type = %T, want TunnelingRequestBody", frame.Body)
	}
	if body.CEMI.DestAddr != 0x0A03 {
		t.Fatalf("DestAddr = %#x, want 0x0A03", body.CEMI.DestAddr)
	}
	ack := knxnet.TunnelingAckBody{
		State: knxnet.TunnState{ChannelID: gw.channelID, SeqNumber: body.State.SeqNumber, Status: knxnet.StatusNoError},
	}
	gw.send(t, knxnet.TunnelingAck, ack, clientAddr)

	select {
	case err := <-writeDone:
		if err != nil {
			t.Fatalf("WriteRaw: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("WriteRaw did not return")
	}
}

func TestAckTimeoutDisconnects(t *testing.T) {
	gw := newTestGateway(t)
	s := newTestSession(t, gw.addr())

	connDone := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		connDone <- s.Connect(ctx)
	}()
	clientAddr := gw.acceptConnect(t)
	if err := <-connDone; err != nil {
		t.Fatalf("Connect: %v", err)
	}

	writeDone := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		writeDone <- s.WriteRaw(ctx, 0x0A03, []byte{1}, 1, 2*time.Second)
	}()

	// Drain both the initial attempt and its one retry without ever ACKing.
	gw.readFrame(t)
	gw.readFrame(t)

	select {
	case err := <-writeDone:
		if err == nil {
			t.Fatal("WriteRaw succeeded, want ack-timeout error")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("WriteRaw did not return")
	}

	// The session should now be tearing the tunnel down; accept the
	// DISCONNECT_REQUEST so it doesn't also time out noisily.
	frame, addr := gw.readFrame(t)
	if frame.Header.ServiceType == knxnet.DisconnectRequest {
		gw.send(t, knxnet.DisconnectResponse, knxnet.ConnStateBody{
			State: knxnet.ConnState{ChannelID: gw.channelID, Status: knxnet.StatusNoError},
		}, addr)
	}
	_ = clientAddr
}

func TestInboundGroupValueDelivered(t *testing.T) {
	gw := newTestGateway(t)
	s := newTestSession(t, gw.addr())

	events := s.Subscribe()

	connDone := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		connDone <- s.Connect(ctx)
	}()
	clientAddr := gw.acceptConnect(t)
	if err := <-connDone; err != nil {
		t.Fatalf("Connect: %v", err)
	}

	// Drain the EventOnline notification before the group-value event.
	select {
	case ev := <-events:
		if ev.Type != EventOnline {
			t.Fatalf("first event = %s, want online", ev.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("missing EventOnline")
	}

	req := knxnet.TunnelingRequestBody{
		State: knxnet.TunnState{ChannelID: gw.channelID, SeqNumber: 0},
		CEMI: knxnet.CEMI{
			MsgCode:  knxnet.MsgLDataInd,
			Ctrl2:    knxnet.Control2{DestAddrType: knxnet.DestGroup, HopCount: knxnet.DefaultHopCount},
			DestAddr: 0x0A03,
			APDU:     knxnet.APDU{APCI: knxnet.GroupValueWrite, Data6: 1},
		},
	}
	gw.send(t, knxnet.TunnelingRequest, req, clientAddr)

	// Expect the session to ack it.
	frame, _ := gw.readFrame(t)
	ackBody, ok := frame.Body.(knxnet.TunnelingAckBody)
	if !ok {
		t.Fatalf("body type = %T, want TunnelingAckBody", frame.Body)
	}
	if ackBody.State.SeqNumber != 0 || ackBody.State.Status != knxnet.StatusNoError {
		t.Fatalf("unexpected ack body: %+v", ackBody.State)
	}

	select {
	case ev := <-events:
		if ev.Type != EventGroupValue {
			t.Fatalf("event = %s, want group_value", ev.Type)
		}
		if ev.GroupAddr != 0x0A03 || ev.BitLength != 6 || len(ev.Payload) != 1 || ev.Payload[0] != 1 {
			t.Fatalf("unexpected event payload: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("missing EventGroupValue")
	}
}

func TestWriteRawRoutedNoAckWait(t *testing.T) {
	gw := newTestGateway(t)
	ctx := context.Background()
	opts := knxnet.DefaultOptions()
	opts.UseTunneling = false
	s, err := New(ctx, Config{
		RemoteEndpoint: gw.addr(),
		Timeouts:       testTimeouts(),
		Options:        opts,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	connDone := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		connDone <- s.Connect(ctx)
	}()
	gw.acceptConnect(t)
	if err := <-connDone; err != nil {
		t.Fatalf("Connect: %v", err)
	}

	writeDone := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		writeDone <- s.WriteRaw(ctx, 0x0A03, []byte{1}, 1, time.Second)
	}()

	frame, _ := gw.readFrame(t)
	body, ok := frame.Body.(knxnet.RoutingIndicationBody)
	if !ok {
		t.Fatalf("body type = %T, want RoutingIndicationBody", frame.Body)
	}
	if body.CEMI.DestAddr != 0x0A03 {
		t.Fatalf("DestAddr = %#x, want 0x0A03", body.CEMI.DestAddr)
	}

	// No ack is ever sent; WriteRaw must still resolve.
	select {
	case err := <-writeDone:
		if err != nil {
			t.Fatalf("WriteRaw: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("WriteRaw did not return")
	}
}

func TestRespondRawAckedRoundTrip(t *testing.T) {
	gw := newTestGateway(t)
	s := newTestSession(t, gw.addr())

	connDone := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		connDone <- s.Connect(ctx)
	}()
	clientAddr := gw.acceptConnect(t)
	if err := <-connDone; err != nil {
		t.Fatalf("Connect: %v", err)
	}

	respondDone := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		respondDone <- s.RespondRaw(ctx, 0x0A03, []byte{1}, 1, time.Second)
	}()

	frame, _ := gw.readFrame(t)
	body, ok := frame.Body.(knxnet.TunnelingRequestBody)
	if !ok {
		t.Fatalf("body type = %T, want TunnelingRequestBody", frame.Body)
	}
	if body.CEMI.APDU.APCI != knxnet.GroupValueResponse {
		t.Fatalf("APCI = %v, want GroupValueResponse", body.CEMI.APDU.APCI)
	}
	ack := knxnet.TunnelingAckBody{
		State: knxnet.TunnState{ChannelID: gw.channelID, SeqNumber: body.State.SeqNumber, Status: knxnet.StatusNoError},
	}
	gw.send(t, knxnet.TunnelingAck, ack, clientAddr)

	select {
	case err := <-respondDone:
		if err != nil {
			t.Fatalf("RespondRaw: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("RespondRaw did not return")
	}
}

func TestGracefulDisconnect(t *testing.T) {
	gw := newTestGateway(t)
	s := newTestSession(t, gw.addr())

	connDone := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		connDone <- s.Connect(ctx)
	}()
	clientAddr := gw.acceptConnect(t)
	if err := <-connDone; err != nil {
		t.Fatalf("Connect: %v", err)
	}

	discDone := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		discDone <- s.Disconnect(ctx)
	}()

	frame, addr := gw.readFrame(t)
	if frame.Header.ServiceType != knxnet.DisconnectRequest {
		t.Fatalf("service type = %s, want DISCONNECT_REQUEST", frame.Header.ServiceType)
	}
	gw.send(t, knxnet.DisconnectResponse, knxnet.ConnStateBody{
		State: knxnet.ConnState{ChannelID: gw.channelID, Status: knxnet.StatusNoError},
	}, addr)

	select {
	case err := <-discDone:
		if err != nil {
			t.Fatalf("Disconnect: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Disconnect did not return")
	}
	_ = clientAddr
}
