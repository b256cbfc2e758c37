package system

var (
	// The current version of this software.
	Version = "1.0.0"
)

// Process exit codes.
const (
	ExitSuccess = 0
	// One of the paths could not be updated.
	ExitFailure = 1
	// The command line could not be parsed.
	ExitUsage = 2
)
