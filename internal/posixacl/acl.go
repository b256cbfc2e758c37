// Package posixacl models POSIX.1e access control lists the way the Linux
// kernel stores them, and provides the small set of primitives needed to read,
// rebuild and write them back: entry lookup, append, removal, mask
// calculation and validation.
//
// An ACL is handled as an ordered collection of entries. Mutating helpers
// never modify the receiver, they return a new collection.
package posixacl

import (
	"fmt"
	"sort"
	"strings"

	"emperror.dev/errors"
)

// Tag identifies the kind of an ACL entry. The values match the ones used by
// the kernel in the extended attribute representation.
type Tag uint16

const (
	TagUserObj  Tag = 0x01
	TagUser     Tag = 0x02
	TagGroupObj Tag = 0x04
	TagGroup    Tag = 0x08
	TagMask     Tag = 0x10
	TagOther    Tag = 0x20
)

// UndefinedID is the qualifier stored for entries that are not named.
const UndefinedID uint32 = 0xFFFFFFFF

// IsNamed returns true for the tags that carry a user or group qualifier.
func (t Tag) IsNamed() bool {
	return t == TagUser || t == TagGroup
}

func (t Tag) valid() bool {
	switch t {
	case TagUserObj, TagUser, TagGroupObj, TagGroup, TagMask, TagOther:
		return true
	}
	return false
}

// String returns the tag keyword used by the ACL text form.
func (t Tag) String() string {
	switch t {
	case TagUserObj, TagUser:
		return "user"
	case TagGroupObj, TagGroup:
		return "group"
	case TagMask:
		return "mask"
	case TagOther:
		return "other"
	}
	return fmt.Sprintf("tag(%#x)", uint16(t))
}

// Perm is a permission set made of read, write and execute bits.
type Perm uint16

const (
	PermExecute Perm = 0x01
	PermWrite   Perm = 0x02
	PermRead    Perm = 0x04

	permAll = PermRead | PermWrite | PermExecute
)

// Without returns the permission set with the bits of q cleared.
func (p Perm) Without(q Perm) Perm {
	return p &^ q
}

// String renders the permission set as "rwx", using "-" for missing bits.
func (p Perm) String() string {
	var b strings.Builder
	for _, v := range []struct {
		bit Perm
		c   byte
	}{{PermRead, 'r'}, {PermWrite, 'w'}, {PermExecute, 'x'}} {
		if p&v.bit != 0 {
			b.WriteByte(v.c)
		} else {
			b.WriteByte('-')
		}
	}
	return b.String()
}

// ParsePerm parses the "rwx" form produced by Perm.String.
func ParsePerm(s string) (Perm, error) {
	if len(s) != 3 {
		return 0, errors.Errorf("posixacl: invalid permissions %q", s)
	}
	var p Perm
	for i, v := range []struct {
		bit Perm
		c   byte
	}{{PermRead, 'r'}, {PermWrite, 'w'}, {PermExecute, 'x'}} {
		switch s[i] {
		case v.c:
			p |= v.bit
		case '-':
		default:
			return 0, errors.Errorf("posixacl: invalid permissions %q", s)
		}
	}
	return p, nil
}

// Entry is a single ACL entry. Qualifier is only meaningful for named entries.
type Entry struct {
	Tag       Tag
	Qualifier uint32
	Perm      Perm
}

func (e Entry) matches(tag Tag, qualifier uint32) bool {
	if e.Tag != tag {
		return false
	}
	return !tag.IsNamed() || e.Qualifier == qualifier
}

// ACL is an ordered collection of entries.
type ACL []Entry

// FromMode builds the minimal three entry ACL that is equivalent to the
// permission bits of the given file mode.
func FromMode(mode uint32) ACL {
	return ACL{
		{Tag: TagUserObj, Qualifier: UndefinedID, Perm: Perm(mode>>6) & permAll},
		{Tag: TagGroupObj, Qualifier: UndefinedID, Perm: Perm(mode>>3) & permAll},
		{Tag: TagOther, Qualifier: UndefinedID, Perm: Perm(mode) & permAll},
	}
}

// Find returns the first entry with the given tag. It is meant for the
// singleton tags (owner, owning group, mask, other).
func (a ACL) Find(tag Tag) (Entry, bool) {
	for _, e := range a {
		if e.Tag == tag {
			return e, true
		}
	}
	return Entry{}, false
}

// Lookup returns the named entry with the given tag and qualifier.
func (a ACL) Lookup(tag Tag, qualifier uint32) (Entry, bool) {
	for _, e := range a {
		if e.Tag == tag && e.Qualifier == qualifier {
			return e, true
		}
	}
	return Entry{}, false
}

// Qualifiers returns the qualifiers of all entries with the given tag, in
// collection order.
func (a ACL) Qualifiers(tag Tag) []uint32 {
	var out []uint32
	for _, e := range a {
		if e.Tag == tag {
			out = append(out, e.Qualifier)
		}
	}
	return out
}

// Append returns a copy of the collection with e added at the end. Non-named
// entries always get the undefined qualifier.
func (a ACL) Append(e Entry) ACL {
	if !e.Tag.IsNamed() {
		e.Qualifier = UndefinedID
	}
	out := make(ACL, len(a), len(a)+1)
	copy(out, a)
	return append(out, e)
}

// Remove returns a copy of the collection without the first entry matching
// tag and qualifier, and whether such an entry existed. The qualifier is
// ignored for non-named tags.
func (a ACL) Remove(tag Tag, qualifier uint32) (ACL, bool) {
	for i, e := range a {
		if !e.matches(tag, qualifier) {
			continue
		}
		out := make(ACL, 0, len(a)-1)
		out = append(out, a[:i]...)
		return append(out, a[i+1:]...), true
	}
	return a, false
}

// Sorted returns a copy of the collection in the canonical order used by the
// kernel and by the text form: owner, named users, owning group, named groups,
// mask and other, named entries ordered by qualifier.
func (a ACL) Sorted() ACL {
	out := make(ACL, len(a))
	copy(out, a)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Tag != out[j].Tag {
			return out[i].Tag < out[j].Tag
		}
		return out[i].Qualifier < out[j].Qualifier
	})
	return out
}

// HasNamed returns true if at least one named user or named group entry is
// present.
func (a ACL) HasNamed() bool {
	for _, e := range a {
		if e.Tag.IsNamed() {
			return true
		}
	}
	return false
}

// IsMinimal returns true if the collection only holds the three base entries,
// in which case it is fully represented by the file mode.
func (a ACL) IsMinimal() bool {
	for _, e := range a {
		if e.Tag != TagUserObj && e.Tag != TagGroupObj && e.Tag != TagOther {
			return false
		}
	}
	return true
}

// CalcMask returns a copy of the collection with the mask entry set to the
// union of the permissions of every named entry and the owning group entry.
// A mask entry is added when missing.
func (a ACL) CalcMask() ACL {
	var perm Perm
	for _, e := range a {
		if e.Tag.IsNamed() || e.Tag == TagGroupObj {
			perm |= e.Perm
		}
	}
	out := make(ACL, len(a), len(a)+1)
	copy(out, a)
	for i := range out {
		if out[i].Tag == TagMask {
			out[i].Perm = perm
			return out
		}
	}
	return append(out, Entry{Tag: TagMask, Qualifier: UndefinedID, Perm: perm})
}

// Valid checks the structural rules the kernel enforces: exactly one owner,
// owning group and other entry, at most one mask, no duplicate named entries,
// and a mask whenever named entries exist.
func (a ACL) Valid() error {
	counts := make(map[Tag]int, 6)
	seen := make(map[Entry]struct{}, len(a))
	for _, e := range a {
		if !e.Tag.valid() {
			return errors.Errorf("posixacl: invalid entry tag %#x", uint16(e.Tag))
		}
		if e.Perm&^permAll != 0 {
			return errors.Errorf("posixacl: invalid permissions %#o for %s entry", uint16(e.Perm), e.Tag)
		}
		counts[e.Tag]++
		if e.Tag.IsNamed() {
			k := Entry{Tag: e.Tag, Qualifier: e.Qualifier}
			if _, ok := seen[k]; ok {
				return errors.Errorf("posixacl: duplicate %s entry for id %d", e.Tag, e.Qualifier)
			}
			seen[k] = struct{}{}
		}
	}
	for _, t := range []Tag{TagUserObj, TagGroupObj, TagOther} {
		if counts[t] != 1 {
			return errors.Errorf("posixacl: expected exactly one %s base entry, found %d", t, counts[t])
		}
	}
	if counts[TagMask] > 1 {
		return errors.New("posixacl: more than one mask entry")
	}
	if counts[TagMask] == 0 && (counts[TagUser] > 0 || counts[TagGroup] > 0) {
		return errors.New("posixacl: named entries require a mask entry")
	}
	return nil
}
