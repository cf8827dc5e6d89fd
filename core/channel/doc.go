// Package channel implements the channel manager: prefix classification of
// channel names into public, private and presence variants, and the
// subscribe/unsubscribe/client-event protocol that ties the auth gateway,
// presence registry and broadcast dispatcher together.
//
// Per (connection, channel) pair the manager moves through
// Unjoined -> Authenticating -> Joined -> Unjoined. Authorization failures
// stay channel-scoped: the requester gets a subscription_error frame and the
// connection remains usable for every other channel.
package channel
