//go:build unix

package walk

import "golang.org/x/sys/unix"

type fileID struct {
	dev, ino uint64
	path     string
}

// identify returns the device and inode path resolves to.
func identify(path string) (fileID, error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return fileID{}, err
	}
	return fileID{dev: uint64(st.Dev), ino: uint64(st.Ino)}, nil
}
