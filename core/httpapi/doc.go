// Package httpapi exposes the introspection endpoints of the bridge: server
// status, the list of occupied channels, per-channel subscription counts and
// the deduplicated user list of presence channels. The endpoints carry no
// authentication and are meant to stay behind the operator's perimeter.
package httpapi
