package posixacl

import "emperror.dev/errors"

// ErrUnsupported is returned by the system facility on platforms without
// POSIX ACL extended attributes.
var ErrUnsupported = errors.New("posixacl: POSIX ACLs are not supported on this platform")

const (
	modeTypeMask = 0o170000
	modeDir      = 0o040000
	modeSymlink  = 0o120000
)

// Stat is the ownership and mode snapshot of a filesystem object, taken
// without following symbolic links.
type Stat struct {
	Uid  uint32
	Gid  uint32
	Mode uint32
}

func (s Stat) IsDir() bool {
	return s.Mode&modeTypeMask == modeDir
}

func (s Stat) IsSymlink() bool {
	return s.Mode&modeTypeMask == modeSymlink
}

// Facility is the set of native operations needed to inspect and rewrite the
// ACLs of a path. Errors returned by implementations should carry the
// underlying cause, e.g. as an *os.PathError.
type Facility interface {
	// Lstat returns the snapshot of path without following a final symlink.
	Lstat(path string) (Stat, error)
	// ReadAccess returns the access ACL of path. Objects without an ACL
	// attribute report the minimal ACL derived from their mode.
	ReadAccess(path string) (ACL, error)
	// ReadDefault returns the default ACL of a directory, which is empty when
	// none is set.
	ReadDefault(path string) (ACL, error)
	// Apply replaces the access ACL of path with acl in a single call.
	Apply(path string, acl ACL) error
	// HasExtended reports whether path carries anything beyond the three base
	// entries, either in its access ACL or as a default ACL.
	HasExtended(path string) (bool, error)
}

// Formatter is implemented by facilities that render ACLs themselves, the
// way the system ACL tools print them.
type Formatter interface {
	Format(acl ACL) (string, error)
}

// hasExtended implements Facility.HasExtended on top of the read operations
// of f.
func hasExtended(f Facility, path string) (bool, error) {
	acl, err := f.ReadAccess(path)
	if err != nil {
		return false, err
	}
	if !acl.IsMinimal() {
		return true, nil
	}
	def, err := f.ReadDefault(path)
	if err != nil {
		return false, err
	}
	return len(def) > 0, nil
}
