package ws

import (
	"time"

	"github.com/HerbHall/heartbeat/internal/event"
	"github.com/HerbHall/heartbeat/internal/monitor"
)

// MessageType discriminates stream messages.
type MessageType string

const (
	MessageResult     MessageType = "monitor.result"
	MessageRegistered MessageType = "monitor.registered"
	MessageRemoved    MessageType = "monitor.removed"
)

// Message is the envelope of every stream message.
type Message struct {
	Type      MessageType `json:"type"`
	Namespace string      `json:"namespace,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Data      any         `json:"data"`
}

// messageFor converts a bus event to a stream message. Events with an
// unexpected payload are dropped.
func messageFor(e event.Event) (Message, bool) {
	switch p := e.Payload.(type) {
	case monitor.Result:
		if e.Topic != event.TopicResult {
			return Message{}, false
		}
		return Message{Type: MessageResult, Namespace: p.Namespace, Timestamp: e.Timestamp, Data: p}, true
	case event.MonitorChange:
		var typ MessageType
		switch e.Topic {
		case event.TopicRegistered:
			typ = MessageRegistered
		case event.TopicRemoved:
			typ = MessageRemoved
		default:
			return Message{}, false
		}
		return Message{Type: typ, Namespace: p.Namespace, Timestamp: e.Timestamp, Data: p}, true
	default:
		return Message{}, false
	}
}
