package forge

import "errors"

// Sentinel errors for the handful of conditions callers need to
// distinguish programmatically. Everything else is a wrapped fmt.Errorf.
var (
	ErrNotFound         = errors.New("package not found")
	ErrAlreadyInstalled = errors.New("package already installed")
	ErrNoManifest       = errors.New("no manifest for package")
	ErrCycle            = errors.New("dependency cycle detected")
	ErrUnknownFormat    = errors.New("unknown archive format")
)
