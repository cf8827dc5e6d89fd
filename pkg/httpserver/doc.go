// Package httpserver runs the bridge's HTTP listener with graceful
// shutdown. Defaults are tuned for long-lived WebSocket connections: no
// read or write timeout on the server itself (the transport enforces its
// own ping/pong deadlines) and a generous idle timeout for keep-alives.
package httpserver
