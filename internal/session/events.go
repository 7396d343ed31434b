package session

import (
	"fmt"

	"github.com/nerrad567/knxnet/internal/knxnet"
)

// EventType discriminates the kinds of Event a session publishes to
// subscribers.
type EventType int

const (
	// EventOnline fires each time the session reaches the online state.
	EventOnline EventType = iota
	// EventOffline fires each time the session falls back to idle.
	EventOffline
	// EventGroupValue fires for every inbound L_Data carrying a
	// GroupValue_Write or GroupValue_Response.
	EventGroupValue
)

func (t EventType) String() string {
	switch t {
	case EventOnline:
		return "online"
	case EventOffline:
		return "offline"
	case EventGroupValue:
		return "group_value"
	default:
		return "unknown"
	}
}

// Event is published to subscribers for connection-state changes and
// inbound group traffic. Subscribers never see retransmits or
// duplicate-ACK traffic, only accepted inbound sequence numbers.
//
// Fields below GroupAddr are meaningful only for EventGroupValue.
type Event struct {
	Type      EventType
	GroupAddr uint16
	GroupText string // textual group address, formatted per TwoLevelAddressing
	SrcAddr   uint16
	APCI      knxnet.APCI
	Payload   []byte
	BitLength int
}

// Topic returns the "<apci>_<dest>" form (or bare "online"/"offline") for
// this event, for consumers such as the MQTT publisher that route by
// topic string rather than Go type.
func (e Event) Topic() string {
	switch e.Type {
	case EventOnline:
		return "online"
	case EventOffline:
		return "offline"
	case EventGroupValue:
		return fmt.Sprintf("%s_%s", e.APCI, e.GroupText)
	default:
		return "unknown"
	}
}

const subscriberQueueSize = 16

// Subscribe returns a channel receiving every Event published from this
// point on. The channel is closed when the session is closed. A slow
// subscriber that doesn't drain its channel will miss events rather than
// stall the event loop: sends are non-blocking.
func (s *Session) Subscribe() <-chan Event {
	ch := make(chan Event, subscriberQueueSize)
	s.eventSubsMu.Lock()
	s.eventSubs = append(s.eventSubs, ch)
	s.eventSubsMu.Unlock()
	return ch
}

// publish fans an event out to every current subscriber without
// blocking the event loop goroutine.
func (s *Session) publish(ev Event) {
	s.eventSubsMu.Lock()
	defer s.eventSubsMu.Unlock()
	for _, ch := range s.eventSubs {
		select {
		case ch <- ev:
		default:
			s.logWarn("subscriber channel full, dropping event", "type", ev.Type.String())
		}
	}
}

func (s *Session) closeSubscribers() {
	s.eventSubsMu.Lock()
	defer s.eventSubsMu.Unlock()
	for _, ch := range s.eventSubs {
		close(ch)
	}
	s.eventSubs = nil
}
