package posixacl

import (
	"fmt"
	"os/user"
	"strconv"
	"strings"
)

// Resolver turns numeric user and group ids into the names shown in the text
// form of an ACL.
type Resolver interface {
	UserName(uid uint32) string
	GroupName(gid uint32) string
}

// SystemResolver resolves names through the system user and group databases,
// falling back to the numeric id when no name is found.
type SystemResolver struct{}

func (SystemResolver) UserName(uid uint32) string {
	id := strconv.FormatUint(uint64(uid), 10)
	if u, err := user.LookupId(id); err == nil && u.Username != "" {
		return u.Username
	}
	return id
}

func (SystemResolver) GroupName(gid uint32) string {
	id := strconv.FormatUint(uint64(gid), 10)
	if g, err := user.LookupGroupId(id); err == nil && g.Name != "" {
		return g.Name
	}
	return id
}

// NumericResolver always renders numeric ids.
type NumericResolver struct{}

func (NumericResolver) UserName(uid uint32) string {
	return strconv.FormatUint(uint64(uid), 10)
}

func (NumericResolver) GroupName(gid uint32) string {
	return strconv.FormatUint(uint64(gid), 10)
}

// Text renders the collection in the long POSIX ACL text form, one entry per
// line in canonical order. Entries whose permissions are reduced by the mask get an
// "#effective:" annotation, the same way getfacl prints them.
func (a ACL) Text(r Resolver) string {
	if r == nil {
		r = NumericResolver{}
	}
	mask, hasMask := a.Find(TagMask)

	var b strings.Builder
	for _, e := range a.Sorted() {
		var q string
		switch e.Tag {
		case TagUser:
			q = Escape(r.UserName(e.Qualifier))
		case TagGroup:
			q = Escape(r.GroupName(e.Qualifier))
		}
		line := fmt.Sprintf("%s:%s:%s", e.Tag, q, e.Perm)
		b.WriteString(line)
		if hasMask && (e.Tag.IsNamed() || e.Tag == TagGroupObj) {
			if eff := e.Perm & mask.Perm; eff != e.Perm {
				b.WriteString("\t#effective:")
				b.WriteString(eff.String())
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// Escape quotes whitespace and backslashes in a user or group name using
// three digit octal escapes, e.g. "domain users" becomes "domain\040users".
func Escape(name string) string {
	if !strings.ContainsAny(name, " \t\n\r\\") {
		return name
	}
	var b strings.Builder
	for i := 0; i < len(name); i++ {
		switch c := name[i]; c {
		case ' ', '\t', '\n', '\r', '\\':
			fmt.Fprintf(&b, "\\%03o", c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// shortText renders the collection in the comma separated short text form
// with numeric qualifiers, e.g. "u::rw-,u:10000:r--,g::r--,m::r--,o::---".
func (a ACL) shortText() string {
	parts := make([]string, 0, len(a))
	for _, e := range a.Sorted() {
		var q string
		if e.Tag.IsNamed() {
			q = strconv.FormatUint(uint64(e.Qualifier), 10)
		}
		parts = append(parts, fmt.Sprintf("%c:%s:%s", e.Tag.String()[0], q, e.Perm))
	}
	return strings.Join(parts, ",")
}
