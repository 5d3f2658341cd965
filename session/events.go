package session

import (
	"encoding/json"
	"log/slog"
)

// eventBacklog bounds the inbound-notification channel. A slow consumer
// drops notifications rather than stalling the read loop, matching
// internal/homeassistant/websocket.go's buffered events channel.
const eventBacklog = 64

// InboundNotification is a notification received from the peer and
// delivered to a consumer of Engine.Events.
type InboundNotification struct {
	Method string
	Params json.RawMessage
}

func newEventChannel() chan *InboundNotification {
	return make(chan *InboundNotification, eventBacklog)
}

// publish delivers n without blocking. If the channel is full the
// notification is dropped and logged; a backed-up consumer should not
// be able to stall message dispatch for the whole session.
func publish(ch chan *InboundNotification, n *InboundNotification, logger *slog.Logger) {
	select {
	case ch <- n:
	default:
		logger.Warn("event channel full, dropping inbound notification", "method", n.Method)
	}
}
