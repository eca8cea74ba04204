package minecraft

import "errors"

var (
	// ErrInvalidState is returned when an operation is attempted from a
	// state that does not permit it, e.g. Start on a running server.
	ErrInvalidState = errors.New("invalid server state for operation")

	// ErrNotRunning is returned by Write/WriteLine when there is no
	// process to forward input to.
	ErrNotRunning = errors.New("server is not running")

	// ErrTimeout is returned when an awaited console response does not
	// arrive within its bounded window.
	ErrTimeout = errors.New("timed out waiting for server response")

	// ErrLaunch is returned by Start when the process backend fails to
	// spawn the server.
	ErrLaunch = errors.New("failed to launch server process")
)
