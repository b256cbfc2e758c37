//go:build linux && cgo && !noacl

package posixacl

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestLibACL(t *testing.T) {
	dir := t.TempDir()
	requireACLSupport(t, dir)
	l := NewLibACL()

	file := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(file, []byte("test"), 0o640))
	require.NoError(t, os.Chmod(file, 0o640))

	t.Run("reads the mode as a minimal acl", func(t *testing.T) {
		acl, err := l.ReadAccess(file)
		require.NoError(t, err)
		assert.Equal(t, FromMode(0o640), acl.Sorted())

		def, err := l.ReadDefault(file)
		require.NoError(t, err)
		assert.Empty(t, def)

		ext, err := l.HasExtended(file)
		require.NoError(t, err)
		assert.False(t, ext)
	})

	t.Run("writes acls readable through the extended attributes", func(t *testing.T) {
		acl := FromMode(0o640).
			Append(Entry{Tag: TagUser, Qualifier: 65010, Perm: PermRead}).
			Append(Entry{Tag: TagUser, Qualifier: 65001, Perm: PermRead | PermExecute}).
			CalcMask()
		require.NoError(t, l.Apply(file, acl))

		got, err := NewXattr().ReadAccess(file)
		require.NoError(t, err)
		assert.Equal(t, acl.Sorted(), got.Sorted())

		got, err = l.ReadAccess(file)
		require.NoError(t, err)
		assert.Equal(t, acl.Sorted(), got.Sorted())

		ext, err := l.HasExtended(file)
		require.NoError(t, err)
		assert.True(t, ext)
	})

	t.Run("a minimal acl drops the attribute", func(t *testing.T) {
		require.NoError(t, l.Apply(file, FromMode(0o640)))

		_, err := unix.Getxattr(file, AttrAccess, nil)
		assert.ErrorIs(t, err, unix.ENODATA)
	})

	t.Run("formats entries in canonical order", func(t *testing.T) {
		acl := FromMode(0o640).
			Append(Entry{Tag: TagUser, Qualifier: 65010, Perm: PermRead}).
			Append(Entry{Tag: TagUser, Qualifier: 65001, Perm: PermRead}).
			CalcMask()

		out, err := l.Format(acl)
		require.NoError(t, err)
		lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
		require.Len(t, lines, 6)
		assert.Equal(t, "user::rw-", lines[0])
		assert.True(t, strings.HasPrefix(lines[1], "user:"))
		assert.True(t, strings.HasPrefix(lines[2], "user:"))
		assert.Equal(t, "group::r--", lines[3])
		assert.Equal(t, "mask::r--", lines[4])
		assert.Equal(t, "other::---", lines[5])
	})

	t.Run("missing paths fail", func(t *testing.T) {
		_, err := l.ReadAccess(filepath.Join(dir, "not_exist"))
		assert.ErrorContains(t, err, "no such file or directory")
	})
}
