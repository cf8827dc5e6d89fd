package ingest

import "errors"

var (
	// ErrAlreadySubscribed is returned by Subscribe when delivery is
	// already running.
	ErrAlreadySubscribed = errors.New("ingest: already subscribed")
	// ErrNotSubscribed is returned by Unsubscribe without a prior Subscribe.
	ErrNotSubscribed = errors.New("ingest: not subscribed")
	// ErrSubscribeFailed wraps a transport failure during Subscribe.
	ErrSubscribeFailed = errors.New("ingest: subscribe failed")
)
