package logic

import "errors"

var (
	// ErrConfigInvalid is fatal at startup: scheduling must not run on a
	// configuration whose shape does not match the station table.
	ErrConfigInvalid = errors.New("config invalid")

	// ErrTimeNotSet defers a tick until the clock is available.
	ErrTimeNotSet = errors.New("time not set")

	// ErrNetworkUnavailable is soft and retried with backoff.
	ErrNetworkUnavailable = errors.New("network unavailable")

	// ErrStorageUnavailable means a log write was dropped.
	ErrStorageUnavailable = errors.New("storage unavailable")

	ErrUnknownStation  = errors.New("unknown station")
	ErrUnknownProgram  = errors.New("unknown program")
	ErrStationBusy     = errors.New("station already scheduled")
	ErrStationDisabled = errors.New("station disabled")
	ErrMasterStation   = errors.New("station is the master")
	ErrInvalidDuration = errors.New("invalid duration")
)
