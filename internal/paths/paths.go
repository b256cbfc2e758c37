// Package paths enumerates the Container Station and container share paths
// whose ACLs need to be adjusted for unprivileged LXD containers.
package paths

import (
	"path/filepath"
	"sort"

	"github.com/apex/log"
	"github.com/karrick/godirwalk"
)

// StationPaths are the directories below the Container Station root that
// unprivileged containers need to traverse.
var StationPaths = []string{
	"",
	"lib",
	"var",
}

// StationRecursePaths are walked recursively below the Container Station
// root, every file and directory found is included.
var StationRecursePaths = []string{
	"usr",
}

// ContainerPaths are the directories below the container share folder that
// lead up to the LXD container storage.
var ContainerPaths = []string{
	"",
	"container-station-data/lib",
	"container-station-data/lib/lxd",
	"container-station-data/lib/lxd/containers",
	"container-station-data/lib/lxd/devices",
	"container-station-data/lib/lxd/shmounts",
	"container-station-data/lib/lxd/snapshots",
	"container-station-data/lib/lxd/storage-pools",
	"container-station-data/lib/lxd/storage-pools/default",
	"container-station-data/lib/lxd/storage-pools/default/containers",
}

// Layout describes where the Container Station install and the container share
// folder live on the host.
type Layout struct {
	Station   string
	Container string
}

// Paths returns a new iterator over every target path of the layout. The
// fixed station paths come first, then the fixed container paths, and finally
// the recursive walks. Each call starts a fresh enumeration.
func (l Layout) Paths() *Iterator {
	it := &Iterator{}
	for _, p := range StationPaths {
		it.queue = append(it.queue, filepath.Join(l.Station, p))
	}
	for _, p := range ContainerPaths {
		it.queue = append(it.queue, filepath.Join(l.Container, p))
	}
	for _, p := range StationRecursePaths {
		it.roots = append(it.roots, filepath.Join(l.Station, p))
	}
	return it
}

// Iterator is a pull based sequence of paths. Directories below a walk root are
// only read once the paths before them have been consumed.
//
//	it := layout.Paths()
//	for it.Next() {
//		fmt.Println(it.Path())
//	}
type Iterator struct {
	queue   []string
	roots   []string
	pending []string
	current string
	scratch []byte
}

// Next advances to the next path, returning false once the sequence is
// exhausted.
func (it *Iterator) Next() bool {
	for {
		if len(it.queue) > 0 {
			it.current = it.queue[0]
			it.queue = it.queue[1:]
			return true
		}
		if n := len(it.pending); n > 0 {
			dir := it.pending[n-1]
			it.pending = it.pending[:n-1]
			it.visit(dir)
			continue
		}
		if len(it.roots) > 0 {
			it.pending = append(it.pending, it.roots[0])
			it.roots = it.roots[1:]
			continue
		}
		it.current = ""
		return false
	}
}

// Path returns the path the last call to Next advanced to.
func (it *Iterator) Path() string {
	return it.current
}

// visit queues the non-directory entries of dir followed by dir itself, and
// schedules its subdirectories to be visited next, in lexical order. Symbolic
// links to directories are skipped entirely. A directory that cannot be read
// is left out along with everything below it.
func (it *Iterator) visit(dir string) {
	if it.scratch == nil {
		it.scratch = make([]byte, godirwalk.MinimumScratchBufferSize)
	}
	dirents, err := godirwalk.ReadDirents(dir, it.scratch)
	if err != nil {
		log.WithField("path", dir).WithField("error", err).Debug("skipping unreadable directory")
		return
	}
	sort.Sort(dirents)

	var subdirs []string
	for _, de := range dirents {
		p := filepath.Join(dir, de.Name())
		isDir, err := de.IsDirOrSymlinkToDir()
		if err != nil {
			// Dangling symlinks are treated like files.
			isDir = false
		}
		if !isDir {
			it.queue = append(it.queue, p)
			continue
		}
		if !de.IsSymlink() {
			subdirs = append(subdirs, p)
		}
	}
	it.queue = append(it.queue, dir)
	for i := len(subdirs) - 1; i >= 0; i-- {
		it.pending = append(it.pending, subdirs[i])
	}
}
