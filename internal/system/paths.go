package system

import (
	"os"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/spf13/afero"
)

// aferoVFS lets securejoin resolve symlinks on an afero filesystem.
type aferoVFS struct {
	fs afero.Fs
}

func (v aferoVFS) Lstat(name string) (os.FileInfo, error) {
	if l, ok := v.fs.(afero.Lstater); ok {
		fi, _, err := l.LstatIfPossible(name)
		return fi, err
	}
	return v.fs.Stat(name)
}

func (v aferoVFS) Readlink(name string) (string, error) {
	if r, ok := v.fs.(afero.LinkReader); ok {
		return r.ReadlinkIfPossible(name)
	}
	return "", &os.PathError{Op: "readlink", Path: name, Err: afero.ErrNoReadlink}
}

// SecureJoin joins unsafePath under root on fs, resolving symlinks so that the
// result never escapes root.
func SecureJoin(fs afero.Fs, root, unsafePath string) (string, error) {
	return securejoin.SecureJoinVFS(root, unsafePath, aferoVFS{fs: fs})
}
