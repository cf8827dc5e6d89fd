package socket

import (
	"encoding/json"

	"github.com/dmitrymomot/echobridge/core/channel"
)

// Protocol event names handled by the transport itself. Anything else is
// treated as a client event and validated by the channel manager.
const (
	eventSubscribe   = "subscribe"
	eventUnsubscribe = "unsubscribe"
	eventClientEvent = "client event"

	// EventConnectionEstablished is the first frame sent on every connection
	// and carries the assigned socket id.
	EventConnectionEstablished = "connection:established"
)

// frame is the wire shape of an inbound message.
type frame struct {
	Event   string              `json:"event"`
	Channel string              `json:"channel,omitempty"`
	Data    json.RawMessage     `json:"data,omitempty"`
	Auth    channel.AuthPayload `json:"auth,omitempty"`
}

// clientEnvelope is the payload of a "client event" frame: the relayed event
// name and its data nested under the frame's data member.
type clientEnvelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}
