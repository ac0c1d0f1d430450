package domain

import "errors"

// Failure taxonomy for a reconciliation pass. Callers classify with
// errors.Is; concrete sites wrap these with resource names and detail.
var (
	// ErrSourceUnavailable means the local domain list could not be read.
	// Fatal before any external call is made.
	ErrSourceUnavailable = errors.New("blocklist source unavailable")

	// ErrCapacityExceeded means the domain count does not fit the
	// configured slot budget. Fatal in stable-slots mode: truncating the
	// blocklist silently is a correctness regression.
	ErrCapacityExceeded = errors.New("domain count exceeds slot capacity")

	// ErrExternalRequestFailed is a transient transport-level failure
	// (network error, timeout, 429, 5xx) that exhausted its retries.
	ErrExternalRequestFailed = errors.New("gateway request failed")

	// ErrExternalRejected is a structured application-level rejection
	// from the platform (duplicate name, invalid reference). Never retried.
	ErrExternalRejected = errors.New("gateway rejected request")

	// ErrOrderingViolation means a rule would reference a list that does
	// not exist, or a list would be deleted while still referenced.
	ErrOrderingViolation = errors.New("resource ordering violation")
)
