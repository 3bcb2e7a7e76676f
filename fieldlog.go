// Package fieldlog records a continuous sample stream into capped-duration
// WAV files on a primary and an optional mirrored backup storage device.
//
// Example usage:
//
//	cfg := fieldlog.DefaultConfig()
//	cfg.PrimaryDir = "/media/sd0"
//	cfg.BackupDir = "/media/sd1"
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
//	err := fieldlog.Run(ctx, cfg, fieldlog.WithConsole(os.Stdin))
//	if errors.Is(err, fieldlog.ErrRebootRequested) {
//	    os.Exit(3)
//	}
package fieldlog

import (
	"context"
	"errors"
	"io"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bft-labs/fieldlog/internal/app"
	"github.com/bft-labs/fieldlog/internal/cliconfig"
	"github.com/bft-labs/fieldlog/internal/domain"
	"github.com/bft-labs/fieldlog/pkg/log"
)

// Version is written into the software tag of every file header.
const Version = "0.3.0"

// Config holds the configuration of a recorder.
// Use DefaultConfig() to get a Config with sensible defaults.
type Config = cliconfig.Config

// ErrRebootRequested is returned by Run after "reboot" was typed on the
// console of a halted recorder.
var ErrRebootRequested = domain.ErrRebootRequested

// DefaultConfig returns a Config with sensible default values.
// At minimum, PrimaryDir must be set before calling Run.
func DefaultConfig() Config {
	return cliconfig.DefaultConfig()
}

// Option configures Run.
type Option func(*options)

type options struct {
	logger log.Logger
	build  []app.BuildOption
}

// WithLogger sets the logger. If not provided, a no-op logger is used.
func WithLogger(l log.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithConsole reads the halt console from r.
func WithConsole(r io.Reader) Option {
	return func(o *options) {
		o.build = append(o.build, app.WithConsole(r))
	}
}

// WithRegistry registers the recorder metrics with reg.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(o *options) {
		o.build = append(o.build, app.WithRegistry(reg))
	}
}

// Run validates cfg, builds the recorder and records until ctx is done.
func Run(ctx context.Context, cfg Config, opts ...Option) error {
	o := options{logger: log.NewNoopLogger()}
	for _, opt := range opts {
		opt(&o)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	st, err := app.Build(cfg, o.logger, Version, o.build...)
	if err != nil {
		return err
	}
	return errors.Join(st.Runner.Run(ctx), st.Close())
}
