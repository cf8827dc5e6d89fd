package channel

import "strings"

// Kind classifies a channel name by its prefix. Classification is pure and
// stateless.
type Kind int

const (
	Public Kind = iota
	Private
	Presence
)

const (
	privatePrefix     = "private-"
	presencePrefix    = "presence-"
	clientEventPrefix = "client-"
)

// KindOf classifies a channel name.
func KindOf(name string) Kind {
	switch {
	case strings.HasPrefix(name, presencePrefix):
		return Presence
	case strings.HasPrefix(name, privatePrefix):
		return Private
	default:
		return Public
	}
}

// RequiresAuth reports whether joining the channel needs the backend
// authorization handshake.
func (k Kind) RequiresAuth() bool {
	return k == Private || k == Presence
}

func (k Kind) String() string {
	switch k {
	case Private:
		return "private"
	case Presence:
		return "presence"
	default:
		return "public"
	}
}

// IsClientEvent reports whether the event name uses the client event
// namespace relayed between subscribers.
func IsClientEvent(event string) bool {
	return strings.HasPrefix(event, clientEventPrefix)
}
