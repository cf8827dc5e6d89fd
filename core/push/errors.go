package push

import "errors"

var (
	// ErrMissingURL is returned by NewHTTPSink without a target URL.
	ErrMissingURL = errors.New("push: missing sink URL")
	// ErrDeliveryFailed wraps the final transport or status failure after
	// all retries are spent.
	ErrDeliveryFailed = errors.New("push: delivery failed")
)
