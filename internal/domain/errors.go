package domain

import "github.com/pkg/errors"

var (
	// ErrUpstreamUnavailable the block explorer returned a non-success status or could not be reached.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrMalformedRecord a transfer record is missing required fields.
	ErrMalformedRecord = errors.New("malformed transfer record")
	// ErrRateLimited a remote read was throttled.
	ErrRateLimited = errors.New("rate limited")
	// ErrRemoteReadFailed a remote read failed for a reason other than throttling.
	ErrRemoteReadFailed = errors.New("remote read failed")
)
