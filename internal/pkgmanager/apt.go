package pkgmanager

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pkg/errors"

	"github.com/pkganalysis/wheelbarrow/internal/probe"
)

// AptManager shells out to dpkg/apt-get, matching the probes named in
// spec section 6 ("package-manager install/remove/purge").
type AptManager struct {
	AptGetBin string
	DpkgBin   string
}

func NewAptManager(aptGetBin, dpkgBin string) *AptManager {
	return &AptManager{AptGetBin: aptGetBin, DpkgBin: dpkgBin}
}

var dpkgListLine = regexp.MustCompile(`^\S+\s+(\S+)\s+(\S+)\s+(\S+)`)

func (m *AptManager) List(ctx context.Context) ([]Candidate, error) {
	cmd := exec.CommandContext(ctx, m.DpkgBin, "-l")
	out, err := cmd.Output()
	if err != nil {
		return nil, errors.Wrap(err, "listing packages via dpkg")
	}

	var candidates []Candidate
	scanner := bufio.NewScanner(strings.NewReader(string(out)))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "ii") && !strings.HasPrefix(line, "un") {
			continue
		}
		m := dpkgListLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		candidates = append(candidates, Candidate{Name: m[1], Version: m[2], Architecture: m[3]})
	}

	return candidates, nil
}

func (m *AptManager) Fetch(ctx context.Context, name, version, arch, destDir string) (string, string, string, error) {
	pkgSpec := fmt.Sprintf("%s=%s", name, version)

	cmd := exec.CommandContext(ctx, m.AptGetBin, "download", pkgSpec)
	cmd.Dir = destDir
	if err := cmd.Run(); err != nil {
		return "", "", "", errors.Wrapf(err, "fetching %s", pkgSpec)
	}

	archivePath := filepath.Join(destDir, fmt.Sprintf("%s_%s_%s.deb", name, version, arch))

	section, description, err := m.showMetadata(ctx, name)
	if err != nil {
		return archivePath, "", "", err
	}

	return archivePath, section, description, nil
}

func (m *AptManager) showMetadata(ctx context.Context, name string) (section, description string, err error) {
	cmd := exec.CommandContext(ctx, m.AptGetBin, "show", name)
	out, err := cmd.Output()
	if err != nil {
		return "", "", errors.Wrapf(err, "showing metadata for %s", name)
	}

	scanner := bufio.NewScanner(strings.NewReader(string(out)))
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "Section:"):
			section = strings.TrimSpace(strings.TrimPrefix(line, "Section:"))
		case strings.HasPrefix(line, "Description:"):
			description = strings.TrimSpace(strings.TrimPrefix(line, "Description:"))
		}
	}

	return section, description, nil
}

func (m *AptManager) Install(ctx context.Context, name, version, arch string) error {
	pkgSpec := fmt.Sprintf("%s=%s", name, version)
	cmd := exec.CommandContext(ctx, m.AptGetBin, "install", "-y", "--allow-downgrades", pkgSpec)
	cmd.Env = append(os.Environ(), "DEBIAN_FRONTEND=noninteractive")
	if err := cmd.Run(); err != nil {
		return errors.Wrapf(err, "installing %s", pkgSpec)
	}
	return nil
}

func (m *AptManager) Remove(ctx context.Context, name, version, arch string, purge bool) error {
	args := []string{"remove", "-y", name}
	if purge {
		args = []string{"purge", "-y", name}
	}

	cmd := exec.CommandContext(ctx, m.AptGetBin, args...)
	cmd.Env = append(os.Environ(), "DEBIAN_FRONTEND=noninteractive")
	if err := cmd.Run(); err != nil {
		return errors.Wrapf(err, "removing %s (purge=%v)", name, purge)
	}
	return nil
}

func (m *AptManager) Services(ctx context.Context) (map[string]bool, error) {
	return probe.ServiceStatusAll(ctx)
}

func (m *AptManager) StartService(ctx context.Context, name string) (string, error) {
	return probe.ServiceControl(ctx, name, "start")
}

func (m *AptManager) StopService(ctx context.Context, name string) (string, error) {
	return probe.ServiceControl(ctx, name, "stop")
}
