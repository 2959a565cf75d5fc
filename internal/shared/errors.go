package shared

import "fmt"

var (
	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrAuthFailed   = fmt.Errorf("authentication failed")
	ErrMissingScope = fmt.Errorf("access token is missing a required scope")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrUploadIncomplete   = fmt.Errorf("resumable upload did not complete")

	// Item validation errors (never retried)
	ErrMissingFields  = fmt.Errorf("item is missing required fields")
	ErrNoTakenTime    = fmt.Errorf("no capture time could be decoded")
	ErrMediaNotFound  = fmt.Errorf("media entry not found in archive")
	ErrInvalidRange   = fmt.Errorf("invalid month range")
	ErrInvalidFlag    = fmt.Errorf("invalid flag value")
	ErrMissingFlag    = fmt.Errorf("missing required flag")
	ErrNotTriggered   = fmt.Errorf("takeout run not triggered")
	ErrRunHadFailures = fmt.Errorf("run finished with failures")
)
