package trigger

import (
	"context"
	"os/exec"

	"github.com/pkg/errors"
)

// DpkgDebBin is the archive-extraction probe (spec section 4.4 Extract:
// "expand the archive into the extract directory"), shelled out to the
// same way internal/pkgmanager reaches dpkg/apt-get.
var DpkgDebBin = "dpkg-deb"

func extractArchive(ctx context.Context, archivePath, extractDir string) error {
	cmd := exec.CommandContext(ctx, DpkgDebBin, "-x", archivePath, extractDir)
	if err := cmd.Run(); err != nil {
		return errors.Wrapf(err, "dpkg-deb -x %s %s", archivePath, extractDir)
	}
	return nil
}
