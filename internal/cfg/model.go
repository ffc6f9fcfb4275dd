// Package cfg holds process-level configuration that is read from the
// environment rather than crossing the shared directory as wire data.
// Anything that travels between dispatcher, broker and scorer processes
// (batch descriptors, analysis.config, results) is a message type instead
// -- see internal/message.
package cfg

import "github.com/caarlos0/env/v11"

const (
	DefaultServiceTimeoutSec = 120
	DefaultBinaryTimeoutSec  = 60
	DefaultMaxResultBytes    = 16 << 20
)

// Config holds knobs for the external collaborators (spec section 1):
// the package-manager binary, the probe binaries, and default subprocess
// timeouts. None of these are part of the wire protocol.
type Config struct {
	PackageManagerBin string `env:"WHEELBARROW_PKG_MANAGER_BIN" envDefault:"apt-get"`
	DpkgBin           string `env:"WHEELBARROW_DPKG_BIN" envDefault:"dpkg"`
	FileProbeBin      string `env:"WHEELBARROW_FILE_BIN" envDefault:"/usr/bin/file"`
	NetstatProbeBin   string `env:"WHEELBARROW_NETSTAT_BIN" envDefault:"/bin/netstat"`
	PsProbeBin        string `env:"WHEELBARROW_PS_BIN" envDefault:"/bin/ps"`
	ServiceCtlBin     string `env:"WHEELBARROW_SERVICE_BIN" envDefault:"/usr/sbin/service"`
	StraceBin         string `env:"WHEELBARROW_STRACE_BIN" envDefault:"strace"`
	SudoBin           string `env:"WHEELBARROW_SUDO_BIN" envDefault:"/usr/bin/sudo"`

	ServiceControlTimeoutSec int64 `env:"WHEELBARROW_SERVICE_TIMEOUT_SEC" envDefault:"120"`
	BinaryRunTimeoutSec      int64 `env:"WHEELBARROW_BINARY_TIMEOUT_SEC" envDefault:"60"`
	MaxResultBytes           int64 `env:"WHEELBARROW_MAX_RESULT_BYTES" envDefault:"16777216"`
}

func Parse() (Config, error) {
	var config Config
	err := env.Parse(&config)
	return config, err
}
