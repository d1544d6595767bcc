// Package options provides the functional-options pattern shared by the
// authenticator and client constructors.
package options

import (
	"log/slog"

	"github.com/fxamacker/cbor/v2"
)

type Options struct {
	Logger  *slog.Logger
	EncMode cbor.EncMode
}

type Option func(*Options)

func WithLogger(logger *slog.Logger) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

func WithEncMode(encMode cbor.EncMode) Option {
	return func(opts *Options) {
		opts.EncMode = encMode
	}
}

// NewOptions builds an Options value, defaulting to CTAP2 canonical CBOR
// encoding so every wire structure this module produces is byte-exact.
func NewOptions(opts ...Option) *Options {
	encMode, _ := cbor.CTAP2EncOptions().EncMode()
	oo := &Options{
		Logger:  slog.Default(),
		EncMode: encMode,
	}

	for _, opt := range opts {
		opt(oo)
	}

	return oo
}
