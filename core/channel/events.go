package channel

// Server-to-client event names. These strings are part of the wire contract
// with the client library and must match exactly.
const (
	EventSubscriptionError  = "subscription_error"
	EventPresenceJoining    = "presence:joining"
	EventPresenceLeaving    = "presence:leaving"
	EventPresenceSubscribed = "presence:subscribed"
)
