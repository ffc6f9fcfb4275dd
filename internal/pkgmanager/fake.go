package pkgmanager

import "context"

// Fake is an in-memory Manager backing the trigger and dispatcher unit
// tests; it never shells out to dpkg/apt-get.
type Fake struct {
	Candidates []Candidate

	FetchArchivePath  string
	FetchSection      string
	FetchDescription  string
	FetchErr          error

	InstallErr error
	RemoveErr  error

	ServicesBefore map[string]bool
	ServicesAfter  map[string]bool
	servicesCalls  int

	StartServiceTrace string
	StopServiceTrace  string
	ServiceErr        error

	Installed []string
	Removed   []string
	Started   []string
	Stopped   []string
}

func (f *Fake) List(ctx context.Context) ([]Candidate, error) {
	return f.Candidates, nil
}

func (f *Fake) Fetch(ctx context.Context, name, version, arch, destDir string) (string, string, string, error) {
	if f.FetchErr != nil {
		return "", "", "", f.FetchErr
	}
	return f.FetchArchivePath, f.FetchSection, f.FetchDescription, nil
}

func (f *Fake) Install(ctx context.Context, name, version, arch string) error {
	if f.InstallErr != nil {
		return f.InstallErr
	}
	f.Installed = append(f.Installed, name)
	return nil
}

func (f *Fake) Remove(ctx context.Context, name, version, arch string, purge bool) error {
	if f.RemoveErr != nil {
		return f.RemoveErr
	}
	f.Removed = append(f.Removed, name)
	return nil
}

// Services returns ServicesBefore on its first call and ServicesAfter on
// every call after, matching the Trigger Manager's before/after Install
// set-diff (spec section 4.4).
func (f *Fake) Services(ctx context.Context) (map[string]bool, error) {
	f.servicesCalls++
	if f.servicesCalls == 1 {
		return f.ServicesBefore, nil
	}
	return f.ServicesAfter, nil
}

func (f *Fake) StartService(ctx context.Context, name string) (string, error) {
	if f.ServiceErr != nil {
		return "", f.ServiceErr
	}
	f.Started = append(f.Started, name)
	return f.StartServiceTrace, nil
}

func (f *Fake) StopService(ctx context.Context, name string) (string, error) {
	if f.ServiceErr != nil {
		return "", f.ServiceErr
	}
	f.Stopped = append(f.Stopped, name)
	return f.StopServiceTrace, nil
}
