//go:build linux

package posixacl

import (
	"os"

	"emperror.dev/errors"
	"golang.org/x/sys/unix"
)

// Xattr implements Facility on top of the Linux ACL extended attributes
// directly, without going through libacl.
type Xattr struct{}

var _ Facility = Xattr{}

// NewXattr returns the facility backed by the running kernel.
func NewXattr() Xattr {
	return Xattr{}
}

func (Xattr) Lstat(path string) (Stat, error) {
	var st unix.Stat_t
	if err := unix.Lstat(path, &st); err != nil {
		return Stat{}, &os.PathError{Op: "lstat", Path: path, Err: err}
	}
	// Do not remove these "redundant" type-casts, they are required for 32-bit builds to work.
	return Stat{Uid: uint32(st.Uid), Gid: uint32(st.Gid), Mode: uint32(st.Mode)}, nil
}

func (x Xattr) ReadAccess(path string) (ACL, error) {
	b, err := getxattr(path, AttrAccess)
	if err != nil {
		if !isNoACL(err) {
			return nil, err
		}
		var st unix.Stat_t
		if err := unix.Stat(path, &st); err != nil {
			return nil, &os.PathError{Op: "stat", Path: path, Err: err}
		}
		return FromMode(uint32(st.Mode)), nil
	}
	var acl ACL
	if err := acl.UnmarshalBinary(b); err != nil {
		return nil, errors.WithMessagef(err, "getxattr %s", path)
	}
	return acl, nil
}

func (Xattr) ReadDefault(path string) (ACL, error) {
	b, err := getxattr(path, AttrDefault)
	if err != nil {
		if isNoACL(err) {
			return ACL{}, nil
		}
		return nil, err
	}
	var acl ACL
	if err := acl.UnmarshalBinary(b); err != nil {
		return nil, errors.WithMessagef(err, "getxattr %s", path)
	}
	return acl, nil
}

// Apply writes the access ACL. A minimal ACL is folded into the mode bits by
// the kernel and the attribute is dropped.
func (Xattr) Apply(path string, acl ACL) error {
	if err := acl.Valid(); err != nil {
		return err
	}
	b, err := acl.MarshalBinary()
	if err != nil {
		return err
	}
	if err := unix.Setxattr(path, AttrAccess, b, 0); err != nil {
		return &os.PathError{Op: "setxattr", Path: path, Err: err}
	}
	return nil
}

func (x Xattr) HasExtended(path string) (bool, error) {
	return hasExtended(x, path)
}

// getxattr reads the full value of an attribute, retrying when the value grows
// between the size probe and the read.
func getxattr(path, attr string) ([]byte, error) {
	for {
		sz, err := unix.Getxattr(path, attr, nil)
		if err != nil {
			return nil, &os.PathError{Op: "getxattr", Path: path, Err: err}
		}
		if sz == 0 {
			return []byte{}, nil
		}
		buf := make([]byte, sz)
		n, err := unix.Getxattr(path, attr, buf)
		if errors.Is(err, unix.ERANGE) {
			continue
		}
		if err != nil {
			return nil, &os.PathError{Op: "getxattr", Path: path, Err: err}
		}
		return buf[:n], nil
	}
}

// isNoACL reports the errors meaning the object simply has no ACL attribute,
// either because none is set or because the filesystem does not support them.
func isNoACL(err error) bool {
	return errors.Is(err, unix.ENODATA) || errors.Is(err, unix.ENOTSUP) || errors.Is(err, unix.EOPNOTSUPP)
}
