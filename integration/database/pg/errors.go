package pg

import "errors"

var (
	ErrFailedToParseConfig     = errors.New("failed to parse postgres connection config")
	ErrFailedToOpenConnection  = errors.New("failed to open postgres connection")
	ErrFailedToApplyMigrations = errors.New("failed to apply postgres migrations")
	ErrHealthcheckFailed       = errors.New("postgres healthcheck failed")
)
