// Package socket provides the WebSocket transport of the bridge. It upgrades
// HTTP requests, assigns each connection a socket id, snapshots the handshake
// request for later authorization calls, and translates JSON frames into
// channel manager operations.
//
// Inbound frames carry an event name and an optional channel:
//
//	{"event":"subscribe","channel":"presence-chat","auth":{"headers":{...}}}
//	{"event":"unsubscribe","channel":"presence-chat"}
//	{"event":"client-typing","channel":"private-chat","data":{...}}
//
// Outbound frames mirror the same shape. The first frame on every connection
// is connection:established with the assigned socket id, which clients echo
// back to the application server when broadcasting with self-exclusion.
package socket
