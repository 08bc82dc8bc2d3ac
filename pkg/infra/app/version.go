package app

import (
	"github.com/kart-io/version"
	"github.com/spf13/pflag"
)

// VersionInfo returns the build metadata stamped into the anchora binary.
func VersionInfo() version.Info {
	return version.Get()
}

// addVersionFlags registers --version on the flagset.
func addVersionFlags(fs *pflag.FlagSet) {
	version.AddFlags(fs)
}

// printVersionAndExitIfRequested prints the build metadata and exits when
// --version was passed.
func printVersionAndExitIfRequested() {
	version.PrintAndExitIfRequested()
}
