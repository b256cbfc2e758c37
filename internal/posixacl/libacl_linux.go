//go:build linux && cgo && !noacl

package posixacl

import (
	"os"

	"emperror.dev/errors"
	libacl "github.com/naegelejd/go-acl"
)

// LibACL implements Facility through libacl, the library behind getfacl and
// setfacl. Objects without an ACL attribute, or on filesystems without ACL
// support, report the ACL derived from their mode.
type LibACL struct {
	// Lstat comes from the syscall based facility.
	Xattr
}

var (
	_ Facility  = LibACL{}
	_ Formatter = LibACL{}
)

func NewLibACL() LibACL {
	return LibACL{}
}

// NewSystem returns the facility used to act on the running system.
func NewSystem() Facility {
	return NewLibACL()
}

func (LibACL) ReadAccess(path string) (ACL, error) {
	a, err := libacl.GetFileAccess(path)
	if err != nil {
		return nil, &os.PathError{Op: "acl_get_file", Path: path, Err: err}
	}
	defer a.Free()
	acl, err := fromLibACL(a)
	return acl, errors.WithMessagef(err, "acl_get_file %s", path)
}

func (LibACL) ReadDefault(path string) (ACL, error) {
	a, err := libacl.GetFileDefault(path)
	if err != nil {
		return nil, &os.PathError{Op: "acl_get_file", Path: path, Err: err}
	}
	defer a.Free()
	acl, err := fromLibACL(a)
	return acl, errors.WithMessagef(err, "acl_get_file %s", path)
}

// Apply replaces the access ACL of path. The mask is recalculated by libacl
// whenever named entries are present.
func (LibACL) Apply(path string, acl ACL) error {
	if err := acl.Valid(); err != nil {
		return err
	}
	a, err := toLibACL(acl)
	if err != nil {
		return err
	}
	defer a.Free()
	if err := a.SetFileAccess(path); err != nil {
		return &os.PathError{Op: "acl_set_file", Path: path, Err: err}
	}
	return nil
}

func (l LibACL) HasExtended(path string) (bool, error) {
	return hasExtended(l, path)
}

// Format renders acl with libacl, resolving qualifiers to user and group
// names.
func (LibACL) Format(acl ACL) (string, error) {
	a, err := toLibACL(acl)
	if err != nil {
		return "", err
	}
	defer a.Free()
	return a.String(), nil
}

func toLibACL(acl ACL) (*libacl.ACL, error) {
	a, err := libacl.Parse(acl.shortText())
	if err != nil {
		return nil, errors.WrapIf(err, "posixacl: failed to convert acl")
	}
	if acl.HasNamed() {
		if err := a.CalcMask(); err != nil {
			a.Free()
			return nil, errors.WrapIf(err, "posixacl: failed to calculate mask")
		}
	}
	return a, nil
}

func fromLibACL(a *libacl.ACL) (ACL, error) {
	var out ACL
	for e := a.FirstEntry(); e != nil; e = a.NextEntry() {
		lt, err := e.GetTag()
		if err != nil {
			return nil, err
		}
		entry := Entry{Qualifier: UndefinedID}
		switch lt {
		case libacl.TagUserObj:
			entry.Tag = TagUserObj
		case libacl.TagUser:
			entry.Tag = TagUser
		case libacl.TagGroupObj:
			entry.Tag = TagGroupObj
		case libacl.TagGroup:
			entry.Tag = TagGroup
		case libacl.TagMask:
			entry.Tag = TagMask
		case libacl.TagOther:
			entry.Tag = TagOther
		default:
			return nil, errors.Errorf("posixacl: unknown libacl tag %d", lt)
		}
		if entry.Tag.IsNamed() {
			q, err := e.GetQualifier()
			if err != nil {
				return nil, err
			}
			entry.Qualifier = uint32(q)
		}
		ps, err := e.GetPermset()
		if err != nil {
			return nil, err
		}
		if entry.Perm, err = ParsePerm(ps.String()); err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, nil
}
