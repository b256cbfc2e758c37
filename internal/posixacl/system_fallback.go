//go:build !linux || !cgo || noacl

package posixacl

// NewSystem returns the facility used to act on the running system. Without
// cgo, or when built with the noacl tag, the extended attributes are accessed
// directly.
func NewSystem() Facility {
	return NewXattr()
}
