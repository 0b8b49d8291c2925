package domain

import "errors"

var (
	// ErrNotFound is returned when a requested plant, device or entity does not exist.
	ErrNotFound = errors.New("report: not found")
	// ErrForbidden is returned when the requester lacks access to the resolved scope.
	ErrForbidden = errors.New("report: forbidden")
	// ErrBadRequest is returned for malformed inputs detected before any data fetch.
	ErrBadRequest = errors.New("report: bad request")
	// ErrRender is returned when export rendering fails after assembly succeeded.
	ErrRender = errors.New("report: render failed")
)
