// Package app defines the contract between the anchora command line and
// its option structs.
package app

import "github.com/spf13/pflag"

// CliOptions is implemented by the server's option structs (see
// cmd/anchora/app/options). The bootstrap binds flags, unmarshals the
// configuration file onto the struct, then completes and validates it
// before the run function starts.
type CliOptions interface {
	// AddFlags registers the options' flags on fs.
	AddFlags(fs *pflag.FlagSet)
	// Validate reports configuration errors before startup.
	Validate() error
	// Complete fills in derived defaults after config loading.
	Complete() error
}
