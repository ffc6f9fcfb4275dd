// Package logging builds the process-wide zap logger used by the
// dispatcher, broker and scorer binaries. The broker additionally tees
// its output into the shared log directory (spec section 6) so a failed
// run leaves a trail visible from the host side.
package logging

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a JSON logger writing to stdout, installs it as the global
// zap logger (zap.L()), and returns it.
func New(component string) *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.InitialFields = map[string]interface{}{"component": component}

	logger, err := cfg.Build()
	if err != nil {
		logger = zap.NewNop()
	}

	zap.ReplaceGlobals(logger)
	return logger
}

// NewBrokerLogger mirrors New but additionally tees to logDir/broker.log
// and logDir/<base> (spec section 6's log/broker.log, log/<name>-<ver>-<arch>),
// matching the way the source tool keeps a per-package broker trail.
func NewBrokerLogger(logDir, base string) (*zap.Logger, error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, err
	}

	stdoutEncoder := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())

	brokerLogFile, err := os.OpenFile(filepath.Join(logDir, "broker.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}

	packageLogFile, err := os.OpenFile(filepath.Join(logDir, base), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}

	core := zapcore.NewTee(
		zapcore.NewCore(stdoutEncoder, zapcore.AddSync(os.Stdout), zapcore.InfoLevel),
		zapcore.NewCore(stdoutEncoder, zapcore.AddSync(brokerLogFile), zapcore.DebugLevel),
		zapcore.NewCore(stdoutEncoder, zapcore.AddSync(packageLogFile), zapcore.DebugLevel),
	)

	logger := zap.New(core).With(zap.String("component", "broker"), zap.String("package", base))
	zap.ReplaceGlobals(logger)

	return logger, nil
}
