package session

import (
	"net"

	"github.com/nerrad567/knxnet/internal/knxnet"
)

// localHPAI describes the control socket's own bound address, advertised
// in CONNECT_REQUEST/CONNECTIONSTATE_REQUEST/DISCONNECT_REQUEST.
func (s *Session) localHPAI() knxnet.HPAI {
	local := s.transport.ControlLocalAddr()
	var ip [4]byte
	if ip4 := local.IP.To4(); ip4 != nil {
		copy(ip[:], ip4)
	}
	return knxnet.HPAI{
		Protocol: knxnet.ProtocolUDP,
		Endpoint: knxnet.Endpoint{IP: ip, Port: uint16(local.Port)},
	}
}

// endpointToUDPAddr converts a wire Endpoint to a dialable address.
func endpointToUDPAddr(e knxnet.Endpoint) *net.UDPAddr {
	return &net.UDPAddr{
		IP:   net.IPv4(e.IP[0], e.IP[1], e.IP[2], e.IP[3]),
		Port: int(e.Port),
	}
}

func (s *Session) buildFrame(st knxnet.ServiceType, body knxnet.Body) ([]byte, error) {
	return knxnet.WriteFrame(knxnet.Frame{Header: knxnet.Header{ServiceType: st}, Body: body})
}

func (s *Session) connectionRequestBody() knxnet.ConnectionRequestBody {
	return knxnet.ConnectionRequestBody{
		Control: s.localHPAI(),
		Tunnel:  s.localHPAI(),
		CRI:     knxnet.CRI{ConnectionType: knxnet.ConnTypeTunnel, KNXLayer: knxnet.KNXLayerLinkLayer},
	}
}

func (s *Session) sendSearchRequest() error {
	buf, err := s.buildFrame(knxnet.SearchRequest, s.connectionRequestBody())
	if err != nil {
		return err
	}
	return s.transport.SendDiscovery(buf)
}

func (s *Session) sendConnectRequest() error {
	buf, err := s.buildFrame(knxnet.ConnectRequest, s.connectionRequestBody())
	if err != nil {
		return err
	}
	return s.transport.SendControlTo(buf, s.remoteControl)
}

func (s *Session) sendConnStateRequest() error {
	body := knxnet.ConnStateBody{
		State:   knxnet.ConnState{ChannelID: s.channelID},
		HasHPAI: true,
		Control: s.localHPAI(),
	}
	buf, err := s.buildFrame(knxnet.ConnectionstateRequest, body)
	if err != nil {
		return err
	}
	return s.transport.SendControlTo(buf, s.remoteControl)
}

func (s *Session) sendDisconnectRequest() error {
	body := knxnet.ConnStateBody{
		State:   knxnet.ConnState{ChannelID: s.channelID},
		HasHPAI: true,
		Control: s.localHPAI(),
	}
	buf, err := s.buildFrame(knxnet.DisconnectRequest, body)
	if err != nil {
		return err
	}
	return s.transport.SendControlTo(buf, s.remoteControl)
}

func (s *Session) sendDisconnectResponse() error {
	body := knxnet.ConnStateBody{State: knxnet.ConnState{ChannelID: s.channelID, Status: knxnet.StatusNoError}}
	buf, err := s.buildFrame(knxnet.DisconnectResponse, body)
	if err != nil {
		return err
	}
	return s.transport.SendControlTo(buf, s.remoteControl)
}

func (s *Session) sendTunnelingRequest(dg knxnet.Datagram) error {
	body := knxnet.TunnelingRequestBody{
		State: knxnet.TunnState{ChannelID: s.channelID, SeqNumber: s.outboundSeq},
		CEMI:  dg.CEMI,
	}
	buf, err := s.buildFrame(knxnet.TunnelingRequest, body)
	if err != nil {
		return err
	}
	return s.transport.SendControlTo(buf, s.remoteControl)
}

func (s *Session) sendRoutingIndication(dg knxnet.Datagram) error {
	buf, err := s.buildFrame(knxnet.RoutingIndication, knxnet.RoutingIndicationBody{CEMI: dg.CEMI})
	if err != nil {
		return err
	}
	return s.transport.SendControlTo(buf, s.remoteControl)
}

func (s *Session) sendTunnelingAck(seq, status byte) error {
	body := knxnet.TunnelingAckBody{State: knxnet.TunnState{ChannelID: s.channelID, SeqNumber: seq, Status: status}}
	buf, err := s.buildFrame(knxnet.TunnelingAck, body)
	if err != nil {
		return err
	}
	return s.transport.SendControlTo(buf, s.remoteControl)
}
