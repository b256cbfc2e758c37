package mutator

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	"emperror.dev/errors"

	"github.com/qnaplxdunpriv/qnaplxdunpriv/internal/posixacl"
)

// memNode is a filesystem object held by memFS. A nil access ACL stands for
// an object without an ACL attribute.
type memNode struct {
	stat   posixacl.Stat
	access posixacl.ACL
	def    posixacl.ACL
}

// memFS is an in-memory posixacl.Facility that behaves like the kernel for the
// parts the mutator relies on.
type memFS struct {
	nodes    map[string]*memNode
	writes   int
	applyErr error
}

var _ posixacl.Facility = (*memFS)(nil)

func newMemFS() *memFS {
	return &memFS{nodes: make(map[string]*memNode)}
}

func (fs *memFS) file(p string, mode uint32) *memNode {
	n := &memNode{stat: posixacl.Stat{Uid: 1000, Gid: 100, Mode: 0o100000 | mode}}
	fs.nodes[p] = n
	return n
}

func (fs *memFS) dir(p string, mode uint32) *memNode {
	n := &memNode{stat: posixacl.Stat{Uid: 1000, Gid: 100, Mode: 0o040000 | mode}}
	fs.nodes[p] = n
	return n
}

func (fs *memFS) symlink(p string) *memNode {
	n := &memNode{stat: posixacl.Stat{Mode: 0o120777}}
	fs.nodes[p] = n
	return n
}

func (fs *memFS) node(op, p string) (*memNode, error) {
	n, ok := fs.nodes[p]
	if !ok {
		return nil, &os.PathError{Op: op, Path: p, Err: syscall.ENOENT}
	}
	return n, nil
}

func (fs *memFS) Lstat(p string) (posixacl.Stat, error) {
	n, err := fs.node("lstat", p)
	if err != nil {
		return posixacl.Stat{}, err
	}
	return n.stat, nil
}

func (fs *memFS) ReadAccess(p string) (posixacl.ACL, error) {
	n, err := fs.node("getxattr", p)
	if err != nil {
		return nil, err
	}
	if n.stat.IsSymlink() {
		return nil, errors.New("memfs: acl of a symlink was read")
	}
	if n.access == nil {
		return posixacl.FromMode(n.stat.Mode), nil
	}
	return append(posixacl.ACL{}, n.access...), nil
}

func (fs *memFS) ReadDefault(p string) (posixacl.ACL, error) {
	n, err := fs.node("getxattr", p)
	if err != nil {
		return nil, err
	}
	return append(posixacl.ACL{}, n.def...), nil
}

func (fs *memFS) Apply(p string, acl posixacl.ACL) error {
	if fs.applyErr != nil {
		return fs.applyErr
	}
	n, err := fs.node("setxattr", p)
	if err != nil {
		return err
	}
	if n.stat.IsSymlink() {
		return errors.New("memfs: acl of a symlink was written")
	}
	fs.writes++
	if acl.IsMinimal() {
		// The kernel folds a minimal ACL into the mode bits.
		var perm uint32
		for _, e := range acl {
			switch e.Tag {
			case posixacl.TagUserObj:
				perm |= uint32(e.Perm) << 6
			case posixacl.TagGroupObj:
				perm |= uint32(e.Perm) << 3
			case posixacl.TagOther:
				perm |= uint32(e.Perm)
			}
		}
		n.stat.Mode = n.stat.Mode&^0o777 | perm
		n.access = nil
		return nil
	}
	n.access = append(posixacl.ACL{}, acl...)
	return nil
}

func (fs *memFS) HasExtended(p string) (bool, error) {
	n, err := fs.node("getxattr", p)
	if err != nil {
		return false, err
	}
	return (n.access != nil && !n.access.IsMinimal()) || len(n.def) > 0, nil
}

// acl returns the current access ACL of p.
func (fs *memFS) acl(p string) posixacl.ACL {
	acl, err := fs.ReadAccess(p)
	if err != nil {
		panic(err)
	}
	return acl
}

// formattingFS renders ACLs in the short text form.
type formattingFS struct {
	*memFS
}

func (formattingFS) Format(acl posixacl.ACL) (string, error) {
	parts := make([]string, 0, len(acl))
	for _, e := range acl.Sorted() {
		q := ""
		if e.Tag.IsNamed() {
			q = strconv.FormatUint(uint64(e.Qualifier), 10)
		}
		parts = append(parts, fmt.Sprintf("%c:%s:%s", e.Tag.String()[0], q, e.Perm))
	}
	return strings.Join(parts, ","), nil
}
