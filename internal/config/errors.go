package config

import "errors"

// Configuration validation errors returned by Config.Validate.
// Callers match them with errors.Is.
var (
	// ErrNoAdminAddress is returned when the admin endpoint is empty.
	ErrNoAdminAddress = errors.New("no admin address specified")

	// ErrInvalidAdminTimeout is returned when the admin timeout is not positive.
	ErrInvalidAdminTimeout = errors.New("invalid admin timeout: must be positive")

	// ErrInvalidCycleTime is returned when the scheduler tick is not positive.
	ErrInvalidCycleTime = errors.New("invalid cycle time: must be positive")

	// ErrInvalidInfoInterval is returned when the info interval is not positive.
	ErrInvalidInfoInterval = errors.New("invalid info interval: must be positive")

	// ErrInvalidRetryInterval is returned when the retry interval is not positive.
	ErrInvalidRetryInterval = errors.New("invalid retry interval: must be positive")

	// ErrInvalidMaxRetries is returned when max retries is negative.
	ErrInvalidMaxRetries = errors.New("invalid max retries: must be non-negative")
)
