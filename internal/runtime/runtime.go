// Package runtime abstracts how a server process is launched. The
// supervisor only sees the capability surface: spawn, write, kill, and
// the onData/onExit callbacks. Two backends exist: a local os/exec
// launcher and a Docker container launcher.
package runtime

import "context"

// Spec describes one process to launch.
type Spec struct {
	// Name is a human-readable instance name, used for container naming.
	Name    string
	Command string
	Args    []string
	Dir     string
	Env     map[string]string

	// MemoryMB caps the process memory when the backend supports it.
	MemoryMB int

	// Ports are container-backend port bindings; ignored by the local
	// launcher, which shares the host network anyway.
	Ports []PortMapping

	// OnData receives raw output bytes. Calls are strictly sequential:
	// a backend must never invoke OnData concurrently or re-entrantly.
	OnData func([]byte)

	// OnExit is called exactly once, after the final OnData, with the
	// process exit code.
	OnExit func(code int)
}

// Process is a handle to a launched process.
type Process interface {
	// Write forwards raw bytes to the process's input.
	Write(p []byte) (int, error)
	// Kill terminates the process unconditionally. Killing an already
	// exited process is not an error.
	Kill() error
}

// Launcher starts processes described by a Spec.
type Launcher interface {
	Spawn(ctx context.Context, spec Spec) (Process, error)
}
