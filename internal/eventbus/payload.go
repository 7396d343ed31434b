package eventbus

import (
	"encoding/json"

	"github.com/nerrad567/knxnet/internal/address"
	"github.com/nerrad567/knxnet/internal/session"
)

// wireEvent is the JSON form of a session.Event. Payload is encoded as
// standard base64 by encoding/json's []byte handling.
type wireEvent struct {
	Type      string `json:"type"`
	GroupAddr string `json:"group_addr,omitempty"`
	SrcAddr   string `json:"src_addr,omitempty"`
	APCI      string `json:"apci,omitempty"`
	Payload   []byte `json:"payload,omitempty"`
	BitLength int    `json:"bit_length,omitempty"`
}

func encodeEvent(ev session.Event) []byte {
	w := wireEvent{
		Type:      ev.Type.String(),
		BitLength: ev.BitLength,
		Payload:   ev.Payload,
	}
	if ev.Type == session.EventGroupValue {
		w.GroupAddr = ev.GroupText
		w.SrcAddr = address.Format(ev.SrcAddr, address.Physical, false)
		w.APCI = ev.APCI.String()
	}
	b, err := json.Marshal(w)
	if err != nil {
		return []byte(`{"type":"` + w.Type + `"}`)
	}
	return b
}
