//go:build linux

package mutator

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"emperror.dev/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/qnaplxdunpriv/qnaplxdunpriv/internal/posixacl"
)

const testUID = 10000

// newXattrTarget creates a file with the given mode in a temporary directory
// and skips the test if that directory cannot store POSIX ACLs.
func newXattrTarget(t *testing.T, mode os.FileMode) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "test-file")
	require.NoError(t, os.WriteFile(p, []byte("Test"), 0o600))
	require.NoError(t, os.Chmod(p, mode))

	probe := posixacl.FromMode(uint32(mode)).
		Append(posixacl.Entry{Tag: posixacl.TagUser, Qualifier: 65000, Perm: posixacl.PermRead}).
		CalcMask()
	if err := posixacl.NewXattr().Apply(p, probe); err != nil {
		if errors.Is(err, unix.ENOTSUP) || errors.Is(err, unix.EOPNOTSUPP) || errors.Is(err, unix.EPERM) {
			t.Skipf("filesystem does not support POSIX ACLs: %v", err)
		}
		require.NoError(t, err)
	}
	require.NoError(t, posixacl.NewXattr().Apply(p, posixacl.FromMode(uint32(mode))))
	return p
}

func readACL(t *testing.T, p string) posixacl.ACL {
	t.Helper()
	acl, err := posixacl.NewXattr().ReadAccess(p)
	require.NoError(t, err)
	return acl
}

func TestMutator_Xattr(t *testing.T) {
	fs := posixacl.NewXattr()

	for _, tc := range []struct {
		mode       os.FileMode
		userPerms  string
		groupPerms string
	}{{0o770, "r-x", "rwx"}, {0o640, "r--", "r--"}} {
		for _, uids := range [][]uint32{{testUID}, {testUID, 2 * testUID}} {
			t.Run(tc.mode.String(), func(t *testing.T) {
				p := newXattrTarget(t, tc.mode)
				st, err := fs.Lstat(p)
				require.NoError(t, err)
				m := New(fs)

				require.NoError(t, m.Set(p, uids))
				acl := readACL(t, p)
				for _, uid := range uids {
					assert.Equal(t, tc.userPerms, entry(acl, posixacl.TagUser, uid))
				}
				assert.Equal(t, tc.groupPerms, entry(acl, posixacl.TagGroup, st.Gid))

				require.NoError(t, m.Unset(p, uids))
				ext, err := fs.HasExtended(p)
				require.NoError(t, err)
				assert.False(t, ext)
				assert.Equal(t, posixacl.FromMode(uint32(tc.mode)), readACL(t, p))
			})
		}
	}

	t.Run("dry run leaves the file untouched", func(t *testing.T) {
		p := newXattrTarget(t, 0o770)
		buf := &bytes.Buffer{}

		require.NoError(t, New(fs, WithDryRun(buf), WithResolver(posixacl.NumericResolver{})).Set(p, []uint32{testUID}))

		assert.Contains(t, buf.String(), "# file: "+p+"\n")
		assert.Contains(t, buf.String(), "# owner: ")
		assert.Contains(t, buf.String(), "# group: ")
		assert.Contains(t, buf.String(), "user:10000:r-x\n")

		ext, err := fs.HasExtended(p)
		require.NoError(t, err)
		assert.False(t, ext)
	})

	t.Run("symbolic links are ignored", func(t *testing.T) {
		p := newXattrTarget(t, 0o640)
		link := filepath.Join(filepath.Dir(p), "test-link")
		dangling := filepath.Join(filepath.Dir(p), "test-link-ne")
		require.NoError(t, os.Symlink(p, link))
		require.NoError(t, os.Symlink("not-exist", dangling))

		m := New(fs)
		for _, l := range []string{link, dangling} {
			assert.NoError(t, m.Set(l, []uint32{testUID}))
			assert.NoError(t, m.Unset(l, []uint32{testUID}))
		}
		ext, err := fs.HasExtended(p)
		require.NoError(t, err)
		assert.False(t, ext)
	})

	t.Run("default acls are never cleaned up", func(t *testing.T) {
		p := newXattrTarget(t, 0o640)
		dir := filepath.Join(filepath.Dir(p), "test-dir")
		require.NoError(t, os.Mkdir(dir, 0o750))
		b, err := posixacl.FromMode(0o400).MarshalBinary()
		require.NoError(t, err)
		require.NoError(t, unix.Setxattr(dir, posixacl.AttrDefault, b, 0))

		require.NoError(t, New(fs).Unset(dir, []uint32{testUID}))

		def, err := fs.ReadDefault(dir)
		require.NoError(t, err)
		assert.Equal(t, "r--", entry(def, posixacl.TagUserObj, 0))
	})

	t.Run("missing paths fail to read", func(t *testing.T) {
		missing := filepath.Join(t.TempDir(), "not_exist")
		m := New(fs)

		err := m.Set(missing, []uint32{testUID})
		assert.True(t, IsErrorCode(err, ErrCodeReadFailed))
		assert.ErrorContains(t, err, "no such file or directory")

		err = m.Unset(missing, []uint32{testUID})
		assert.True(t, IsErrorCode(err, ErrCodeReadFailed))
		assert.ErrorContains(t, err, "no such file or directory")
	})
}
