// Package pkgmanager contracts the package manager collaborator named
// in spec section 1 as out of scope: it is reached only through
// fetch/install/remove/purge operations that mutate host state and may
// fail. The concrete implementation shells out to dpkg/apt-get; a fake
// implementation backs the trigger, dispatcher and broker unit tests.
package pkgmanager

import "context"

// Candidate is one enumerated package version available from the
// backing package manager (spec section 4.1 step 3).
type Candidate struct {
	Name         string
	Version      string
	Architecture string
	Virtual      bool
}

// Manager is the external package-manager contract (spec section 1,
// section 4.1, section 4.4).
type Manager interface {
	// List enumerates every known package/version pair, skipping
	// virtual packages is the caller's responsibility (spec section
	// 4.1 step 3).
	List(ctx context.Context) ([]Candidate, error)

	// Fetch downloads the archive for (name, version, arch) into destDir
	// and returns the archive path (spec section 4.4 Setup).
	Fetch(ctx context.Context, name, version, arch, destDir string) (archivePath string, section string, description string, err error)

	// Install, Remove and Purge mark-and-commit the corresponding
	// operation for (name, version, arch) (spec section 4.4).
	Install(ctx context.Context, name, version, arch string) error
	Remove(ctx context.Context, name, version, arch string, purge bool) error

	// Services lists the services the system currently knows about, for
	// diffing before/after Install (spec section 4.4).
	Services(ctx context.Context) (map[string]bool, error)

	// StartService and StopService run the service control command and
	// return the path to its persisted trace output (spec section 4.4).
	// The signature carries no timeout; AptManager wraps the command in
	// strace and bounds it at a fixed 120 seconds.
	StartService(ctx context.Context, name string) (tracePath string, err error)
	StopService(ctx context.Context, name string) (tracePath string, err error)
}
