//go:build !linux

package posixacl

// Xattr is unavailable outside of Linux; every operation fails with
// ErrUnsupported.
type Xattr struct{}

var _ Facility = Xattr{}

func NewXattr() Xattr {
	return Xattr{}
}

func (Xattr) Lstat(string) (Stat, error)       { return Stat{}, ErrUnsupported }
func (Xattr) ReadAccess(string) (ACL, error)   { return nil, ErrUnsupported }
func (Xattr) ReadDefault(string) (ACL, error)  { return nil, ErrUnsupported }
func (Xattr) Apply(string, ACL) error          { return ErrUnsupported }
func (Xattr) HasExtended(string) (bool, error) { return false, ErrUnsupported }
