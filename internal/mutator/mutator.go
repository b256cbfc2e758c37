// Package mutator grants and revokes read access to a path for a set of user
// ids through named POSIX ACL entries. Only the entries it is asked to touch
// are changed; entries added by other tools are left alone.
package mutator

import (
	"fmt"
	"io"
	"os"

	"github.com/apex/log"
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/qnaplxdunpriv/qnaplxdunpriv/internal/posixacl"
)

type Mutator struct {
	fs     posixacl.Facility
	names  posixacl.Resolver
	dryRun bool
	out    io.Writer
}

type Option func(m *Mutator)

// WithDryRun makes the mutator print the ACLs it would write to w instead of
// applying them.
func WithDryRun(w io.Writer) Option {
	return func(m *Mutator) {
		m.dryRun = true
		m.out = w
	}
}

// WithResolver sets the resolver used for owner and entry names in dry-run
// output.
func WithResolver(r posixacl.Resolver) Option {
	return func(m *Mutator) {
		m.names = r
	}
}

// New returns a mutator acting through the given facility.
func New(fs posixacl.Facility, opts ...Option) *Mutator {
	m := &Mutator{
		fs:    fs,
		names: posixacl.SystemResolver{},
		out:   os.Stdout,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// target is the state of one path loaded at the start of an operation.
type target struct {
	path string
	stat posixacl.Stat
	acl  posixacl.ACL
}

func (t *target) log() *log.Entry {
	return log.WithField("path", t.path)
}

// load reads the snapshot and access ACL of path. A nil target is returned
// for symbolic links, which are never modified.
func (m *Mutator) load(path string) (*target, error) {
	st, err := m.fs.Lstat(path)
	if err != nil {
		return nil, newError(ErrCodeReadFailed, path, err)
	}
	if st.IsSymlink() {
		log.WithField("path", path).Debug("skipping symbolic link")
		return nil, nil
	}
	acl, err := m.fs.ReadAccess(path)
	if err != nil {
		return nil, newError(ErrCodeReadFailed, path, err)
	}
	return &target{path: path, stat: st, acl: acl}, nil
}

// Set grants each uid the permissions of the owner minus write access. An
// entry for the owner's group is added alongside so that the recalculated mask
// keeps the new entries effective. UIDs that already have an entry are left
// as they are, so running Set twice changes nothing the second time.
func (m *Mutator) Set(path string, uids []uint32) error {
	t, err := m.load(path)
	if t == nil || err != nil {
		return err
	}
	owner, ok := t.acl.Find(posixacl.TagUserObj)
	if !ok {
		return newError(ErrCodeMissingOwnerEntry, path, nil)
	}
	group, ok := t.acl.Find(posixacl.TagGroupObj)
	if !ok {
		return newError(ErrCodeMissingOwnerEntry, path, nil)
	}
	_, hasOwnerGroup := t.acl.Lookup(posixacl.TagGroup, t.stat.Gid)

	used := mapset.NewThreadUnsafeSet(t.acl.Qualifiers(posixacl.TagUser)...)
	var changed bool
	for _, uid := range uids {
		if used.Contains(uid) {
			continue
		}
		used.Add(uid)
		changed = true
		t.acl = t.acl.Append(posixacl.Entry{
			Tag:       posixacl.TagUser,
			Qualifier: uid,
			Perm:      owner.Perm.Without(posixacl.PermWrite),
		})
	}
	if !changed {
		t.log().Debug("acl already grants access to all uids")
		return nil
	}
	if !hasOwnerGroup {
		t.acl = t.acl.Append(posixacl.Entry{
			Tag:       posixacl.TagGroup,
			Qualifier: t.stat.Gid,
			Perm:      group.Perm,
		})
	}
	return m.apply(t)
}

// Unset removes the entries of each uid. Once no other named entries remain,
// the owner's group entry left behind by Set and the mask are dropped as well,
// unless the group entry was customized or the path is a directory carrying a
// default ACL.
func (m *Mutator) Unset(path string, uids []uint32) error {
	t, err := m.load(path)
	if t == nil || err != nil {
		return err
	}
	ext, err := m.fs.HasExtended(path)
	if err != nil {
		return newError(ErrCodeReadFailed, path, err)
	}
	if !ext {
		t.log().Debug("path has no extended acl entries")
		return nil
	}

	var changed bool
	for _, uid := range uids {
		if acl, ok := t.acl.Remove(posixacl.TagUser, uid); ok {
			t.acl = acl
			changed = true
		}
	}
	removed, err := m.cleanup(t)
	if err != nil {
		return err
	}
	if !changed && !removed {
		t.log().Debug("no acl entries to remove")
		return nil
	}
	return m.apply(t)
}

// cleanup drops the owner's group entry when it only mirrors the owning group
// permissions, and the mask. It does nothing while other named entries remain
// or when a directory has a default ACL.
func (m *Mutator) cleanup(t *target) (bool, error) {
	if t.stat.IsDir() {
		def, err := m.fs.ReadDefault(t.path)
		if err != nil {
			return false, newError(ErrCodeReadFailed, t.path, err)
		}
		if len(def) > 0 {
			return false, nil
		}
	}
	for _, e := range t.acl {
		if e.Tag == posixacl.TagUser || (e.Tag == posixacl.TagGroup && e.Qualifier != t.stat.Gid) {
			return false, nil
		}
	}
	group, ok := t.acl.Find(posixacl.TagGroupObj)
	if !ok {
		return false, newError(ErrCodeMissingOwnerEntry, t.path, nil)
	}

	var removed bool
	if e, ok := t.acl.Lookup(posixacl.TagGroup, t.stat.Gid); ok && e.Perm == group.Perm {
		t.acl, _ = t.acl.Remove(posixacl.TagGroup, t.stat.Gid)
		removed = true
	}
	if acl, ok := t.acl.Remove(posixacl.TagMask, posixacl.UndefinedID); ok {
		t.acl = acl
		removed = true
	}
	return removed, nil
}

// apply recalculates the mask when named entries exist and then writes the
// ACL, or prints it in dry-run mode.
func (m *Mutator) apply(t *target) error {
	if t.acl.HasNamed() {
		t.acl = t.acl.CalcMask()
	}
	if err := t.acl.Valid(); err != nil {
		return newError(ErrCodeWriteFailed, t.path, err)
	}
	if m.dryRun {
		if err := m.print(t); err != nil {
			return newError(ErrCodeWriteFailed, t.path, err)
		}
		return nil
	}
	if err := m.fs.Apply(t.path, t.acl); err != nil {
		return newError(ErrCodeWriteFailed, t.path, err)
	}
	t.log().WithField("entries", len(t.acl)).Debug("updated acl")
	return nil
}

// print writes the getfacl style listing of the target. Facilities that can
// render ACLs themselves are preferred over the built-in text form.
func (m *Mutator) print(t *target) error {
	text := t.acl.Text(m.names)
	if f, ok := m.fs.(posixacl.Formatter); ok {
		var err error
		if text, err = f.Format(t.acl); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(m.out, "# file: %s\n# owner: %s\n# group: %s\n%s\n",
		t.path,
		posixacl.Escape(m.names.UserName(t.stat.Uid)),
		posixacl.Escape(m.names.GroupName(t.stat.Gid)),
		text,
	)
	return err
}
