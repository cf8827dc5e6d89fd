// Package push delivers messages addressed to the reserved out-of-band
// channel to an external notification service over HTTP. The dispatcher
// diverts the reserved channel here instead of fanning out to sockets.
package push
