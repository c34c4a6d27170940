package internal

import "github.com/icinga/icingacore/pkg/version"

// Version contains version and Git commit information.
var Version = version.New("0.1.0")
