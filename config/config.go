package config

import (
	"strconv"

	"emperror.dev/errors"
	"github.com/creasty/defaults"
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/qnaplxdunpriv/qnaplxdunpriv/internal/paths"
	"github.com/qnaplxdunpriv/qnaplxdunpriv/internal/posixacl"
)

// Operation selects whether access is granted or revoked.
type Operation string

const (
	OperationSet   Operation = "set"
	OperationUnset Operation = "unset"
)

// Configuration holds everything a single run needs. It is only ever built
// from the command line.
type Configuration struct {
	// Directory corresponding to the Container Station folder, which can be
	// found at "/share/CACHEDEV*_DATA/.qpkg/container-station".
	Station string `default:"/Station"`

	// Directory corresponding to the "/share/Container" shared folder.
	Container string `default:"/Container"`

	// Print the new ACLs instead of changing any files.
	DryRun bool

	// Enables debug level logging.
	Debug bool

	Operation Operation

	// UIDs of the unprivileged containers, in the order they were given with
	// duplicates removed.
	UIDs []uint32
}

// New returns a configuration with all defaults applied.
func New() (*Configuration, error) {
	c := &Configuration{}
	if err := defaults.Set(c); err != nil {
		return nil, errors.WithMessage(err, "config: failed to set defaults")
	}
	return c, nil
}

// ParseArgs reads the positional arguments: the operation followed by one or
// more UIDs.
func (c *Configuration) ParseArgs(args []string) error {
	if len(args) < 2 {
		return errors.New("requires an operation and at least one uid")
	}
	switch op := Operation(args[0]); op {
	case OperationSet, OperationUnset:
		c.Operation = op
	default:
		return errors.Errorf("invalid operation %q: must be one of \"set\" or \"unset\"", args[0])
	}

	seen := mapset.NewThreadUnsafeSet[uint32]()
	c.UIDs = c.UIDs[:0]
	for _, a := range args[1:] {
		v, err := strconv.ParseUint(a, 10, 32)
		if err != nil {
			return errors.Errorf("invalid uid %q: must be a non-negative integer", a)
		}
		// The highest id marks unnamed entries and cannot be granted access.
		if uint32(v) == posixacl.UndefinedID {
			return errors.Errorf("invalid uid %q: reserved id", a)
		}
		if seen.Add(uint32(v)) {
			c.UIDs = append(c.UIDs, uint32(v))
		}
	}
	return nil
}

// Layout returns the path layout rooted at the configured directories.
func (c *Configuration) Layout() paths.Layout {
	return paths.Layout{Station: c.Station, Container: c.Container}
}
