package types

import "errors"

var (
	// ErrRateLimited indicates an HTTP 429-class response; fatal for the current request.
	ErrRateLimited = errors.New("rate limited")

	// ErrNoTracksAvailable indicates no playable track descriptors were found.
	ErrNoTracksAvailable = errors.New("no tracks available")
)
