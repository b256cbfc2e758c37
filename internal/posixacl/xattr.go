package posixacl

import (
	"encoding/binary"

	"emperror.dev/errors"
)

// Names of the extended attributes holding the access and default ACLs.
const (
	AttrAccess  = "system.posix_acl_access"
	AttrDefault = "system.posix_acl_default"
)

const (
	xattrVersion    = 0x0002
	xattrHeaderSize = 4
	xattrEntrySize  = 8
)

var ErrMalformedXattr = errors.New("posixacl: malformed acl extended attribute")

// MarshalBinary encodes the collection in the little-endian layout the kernel
// expects for the ACL extended attributes. Entries are written sorted by tag
// and qualifier since the kernel rejects any other order.
func (a ACL) MarshalBinary() ([]byte, error) {
	sorted := a.Sorted()
	b := make([]byte, xattrHeaderSize+len(sorted)*xattrEntrySize)
	binary.LittleEndian.PutUint32(b, xattrVersion)
	for i, e := range sorted {
		if !e.Tag.valid() {
			return nil, errors.Errorf("posixacl: cannot encode entry tag %#x", uint16(e.Tag))
		}
		q := e.Qualifier
		if !e.Tag.IsNamed() {
			q = UndefinedID
		}
		off := xattrHeaderSize + i*xattrEntrySize
		binary.LittleEndian.PutUint16(b[off:], uint16(e.Tag))
		binary.LittleEndian.PutUint16(b[off+2:], uint16(e.Perm))
		binary.LittleEndian.PutUint32(b[off+4:], q)
	}
	return b, nil
}

// UnmarshalBinary decodes an ACL extended attribute value, replacing the
// contents of the receiver.
func (a *ACL) UnmarshalBinary(b []byte) error {
	if len(b) < xattrHeaderSize {
		return errors.WithMessage(ErrMalformedXattr, "missing header")
	}
	if v := binary.LittleEndian.Uint32(b); v != xattrVersion {
		return errors.WithMessagef(ErrMalformedXattr, "unsupported version %d", v)
	}
	body := b[xattrHeaderSize:]
	if len(body)%xattrEntrySize != 0 {
		return errors.WithMessagef(ErrMalformedXattr, "truncated entry (%d trailing bytes)", len(body)%xattrEntrySize)
	}
	out := make(ACL, 0, len(body)/xattrEntrySize)
	for off := 0; off < len(body); off += xattrEntrySize {
		e := Entry{
			Tag:       Tag(binary.LittleEndian.Uint16(body[off:])),
			Perm:      Perm(binary.LittleEndian.Uint16(body[off+2:])),
			Qualifier: binary.LittleEndian.Uint32(body[off+4:]),
		}
		if !e.Tag.valid() {
			return errors.WithMessagef(ErrMalformedXattr, "unknown tag %#x", uint16(e.Tag))
		}
		out = append(out, e)
	}
	*a = out
	return nil
}
