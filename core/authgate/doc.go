// Package authgate performs the private/presence channel authorization
// handshake against the backend application.
//
// The handshake is a form-encoded POST of {socket_id, channel_name} to the
// configured auth endpoint, forwarding the client's auth headers and cookie.
// The target origin is picked from the configured allowed hosts, guided by
// the connection's Referer header. Rejections and transport failures surface
// as *AuthError with the backend's HTTP status (0 for transport errors) and
// are always scoped to the single channel attempt.
package authgate
