package socket

import "time"

// Config holds the WebSocket transport settings.
type Config struct {
	// ReadLimit caps the size of a single inbound frame in bytes.
	ReadLimit int64 `env:"WS_READ_LIMIT" envDefault:"65536"`
	// SendBuffer is the per-connection outbound queue length. A connection
	// that cannot drain its queue is considered dead and closed.
	SendBuffer int `env:"WS_SEND_BUFFER" envDefault:"256"`
	// WriteTimeout bounds a single write to the peer.
	WriteTimeout time.Duration `env:"WS_WRITE_TIMEOUT" envDefault:"10s"`
	// PongTimeout is how long to wait for a pong before dropping the peer.
	PongTimeout time.Duration `env:"WS_PONG_TIMEOUT" envDefault:"60s"`
	// PingInterval must be shorter than PongTimeout.
	PingInterval time.Duration `env:"WS_PING_INTERVAL" envDefault:"54s"`
	// AllowedOrigins restricts the Origin header on upgrade. Empty allows any.
	AllowedOrigins []string `env:"WS_ALLOWED_ORIGINS" envSeparator:","`
}
