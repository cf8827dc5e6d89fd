// Package rooms implements the connection registry: the live-connection map,
// per-channel room membership, and room multicast. Rooms are the transport
// side of channels; one room corresponds to one subscribed channel name.
package rooms
