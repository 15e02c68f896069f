package app

import "github.com/kart-io/ragchat/pkg/app/cliflag"

// CliOptions abstracts configuration options for reading parameters from the
// command line.
type CliOptions interface {
	// Flags returns the named flag sets of every option group.
	Flags() cliflag.NamedFlagSets
	// Complete completes the options with defaults.
	Complete() error
	// Validate validates the options.
	Validate() error
}
