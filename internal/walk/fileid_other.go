//go:build !unix

package walk

import "path/filepath"

type fileID struct {
	dev, ino uint64
	path     string
}

// identify falls back to the fully resolved path where inodes are not
// available.
func identify(path string) (fileID, error) {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return fileID{}, err
	}
	abs, err := filepath.Abs(resolved)
	if err != nil {
		return fileID{}, err
	}
	return fileID{path: abs}, nil
}
