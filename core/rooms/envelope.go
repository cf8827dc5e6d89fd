package rooms

import "encoding/json"

// Envelope is one server-to-client protocol frame. Event and Channel names
// are part of the wire contract; Data carries the application payload
// verbatim.
type Envelope struct {
	Event   string          `json:"event"`
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data,omitempty"`
}
