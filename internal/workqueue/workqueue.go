// Package workqueue implements the shared-directory, atomic-exclusive-
// create claim protocol that lets many Brokers compete for work items
// published by one Dispatcher without any host-side locking (spec
// section 4.2). The only correctness requirement this relies on is that
// the underlying filesystem honors O_CREATE|O_EXCL atomicity -- this
// package must never substitute a best-effort "check then create" for
// that primitive (spec section 9 design note).
package workqueue

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"

	"github.com/pkganalysis/wheelbarrow/internal/message"
)

// ErrNoPackage is returned when no candidate in inDir can be claimed --
// either because inDir is empty or because every candidate lost its
// race (spec section 4.2, section 7).
var ErrNoPackage = errors.New("no package for analysis")

const pendingSuffix = ".pending"

// Claim attempts the exclusive-create protocol against every entry in
// inDir, in a stable (sorted) order, until one succeeds. It returns the
// claimed package (already transitioned to Processing, with
// AnalysisAttempts incremented), the basename used for in/out files, and
// the path of the pending sentinel, which already holds the claimed
// descriptor and is closed; Finalize removes it.
func Claim(inDir, outDir string) (pkg *message.Package, base string, pendingPath string, err error) {
	entries, err := os.ReadDir(inDir)
	if err != nil {
		return nil, "", "", errors.Wrap(err, "reading work queue in dir")
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		p, pendingFile, claimErr := tryClaim(inDir, outDir, name)
		if claimErr != nil {
			// Lost the race or hit an I/O error on this candidate; move on.
			continue
		}
		return p, name, pendingFile, nil
	}

	return nil, "", "", ErrNoPackage
}

func tryClaim(inDir, outDir, name string) (*message.Package, string, error) {
	pendingPath := filepath.Join(outDir, name+pendingSuffix)

	f, err := os.OpenFile(pendingPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		// Already claimed by another Broker, or the sentinel directory
		// isn't writable -- either way this candidate is unavailable.
		return nil, "", err
	}

	var pkg message.Package
	inPath := filepath.Join(inDir, name)
	if err := message.ReadMessage(inPath, &pkg); err != nil {
		f.Close()
		os.Remove(pendingPath)
		return nil, "", errors.Wrap(err, "reading claimed package descriptor")
	}

	pkg.Status = message.Processing
	pkg.AnalysisAttempts++

	if err := message.WriteMessage(pendingPath, &pkg); err != nil {
		f.Close()
		os.Remove(pendingPath)
		return nil, "", errors.Wrap(err, "writing claimed package descriptor")
	}
	f.Close()

	if err := os.Remove(inPath); err != nil {
		// The claim already succeeded and is visible; a failure to
		// remove the source descriptor doesn't unwind it (spec section
		// 4.2 step 3: the item is claimed once the pending write lands).
		return &pkg, pendingPath, nil
	}

	return &pkg, pendingPath, nil
}

// ClaimNamed attempts the exclusive-create protocol against exactly one
// named entry in inDir, used by the Broker's --package single-package
// fallback when no NFS analysis.config is available (spec section 6).
func ClaimNamed(inDir, outDir, name string) (pkg *message.Package, base string, pendingPath string, err error) {
	p, pendingFile, claimErr := tryClaim(inDir, outDir, name)
	if claimErr != nil {
		return nil, "", "", errors.Wrap(claimErr, "claiming named package")
	}
	return p, name, pendingFile, nil
}

// Finalize writes result into outDir/base.{txt,dat} and removes the
// pending sentinel only after the write succeeds, preserving the
// no-orphaning invariant: a crash before the write completes leaves the
// sentinel in place rather than silently losing the claim (spec section
// 4.2).
func Finalize(outDir, base string, textOutput bool, result *message.ApplicationResult) error {
	ext := ".dat"
	if textOutput {
		ext = ".txt"
	}

	resultPath := filepath.Join(outDir, base+ext)
	if err := message.WriteMessage(resultPath, result); err != nil {
		return errors.Wrap(err, "writing application result")
	}

	pendingPath := filepath.Join(outDir, base+pendingSuffix)
	if err := os.Remove(pendingPath); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "removing pending sentinel")
	}

	return nil
}
