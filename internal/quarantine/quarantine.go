// Package quarantine relocates selected files into a holding directory
// instead of deleting them.
package quarantine

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog"
)

// LockName is the advisory lock file kept inside the holding directory.
const LockName = ".imgmatch.lock"

// ErrMissing reports a source file that no longer exists.
var ErrMissing = errors.New("file not found")

// Error describes one file that could not be moved.
type Error struct {
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Move records one relocation.
type Move struct {
	From string
	To   string
}

// Summary is the outcome of a batch. Moved always equals len(Moves).
type Summary struct {
	Moved    int
	Moves    []Move
	Failures []*Error
}

// Errors renders each failure as a message that names the affected path.
func (s Summary) Errors() []string {
	out := make([]string, 0, len(s.Failures))
	for _, f := range s.Failures {
		out = append(out, f.Error())
	}
	return out
}

// Mover performs quarantine batches.
type Mover struct {
	log zerolog.Logger
	// rename and remove are swapped in tests to simulate filesystem failures.
	rename func(from, to string) error
	remove func(path string) error
}

// New returns a Mover that logs through l.
func New(l zerolog.Logger) *Mover {
	return &Mover{log: l, rename: os.Rename, remove: os.Remove}
}

// Move relocates every path into trashRoot, creating it if needed. Name
// clashes get a "__N" suffix before the extension, counting from 1. A failing
// path is recorded and the batch continues. The returned error is non-nil
// only when the holding directory itself cannot be prepared or locked.
func (m *Mover) Move(paths []string, trashRoot string) (Summary, error) {
	var sum Summary
	if err := os.MkdirAll(trashRoot, 0o755); err != nil {
		return sum, fmt.Errorf("create quarantine dir: %w", err)
	}
	lock := flock.New(filepath.Join(trashRoot, LockName))
	ok, err := lock.TryLock()
	if err != nil {
		return sum, fmt.Errorf("acquire quarantine lock: %w", err)
	}
	if !ok {
		return sum, fmt.Errorf("quarantine dir %s is locked by another process", trashRoot)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			m.log.Warn().Err(err).Msg("failed to release quarantine lock")
		}
	}()

	for _, src := range paths {
		dst, err := m.moveOne(src, trashRoot)
		if err != nil {
			m.log.Warn().Err(err).Str("path", src).Msg("quarantine failed")
			sum.Failures = append(sum.Failures, &Error{Path: src, Err: err})
			continue
		}
		m.log.Debug().Str("from", src).Str("to", dst).Msg("quarantined")
		sum.Moves = append(sum.Moves, Move{From: src, To: dst})
		sum.Moved++
	}
	return sum, nil
}

func (m *Mover) moveOne(src, trashRoot string) (string, error) {
	info, err := os.Stat(src)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", ErrMissing
		}
		return "", err
	}
	if info.IsDir() {
		return "", errors.New("is a directory")
	}
	dst, err := UniqueName(trashRoot, filepath.Base(src))
	if err != nil {
		return "", err
	}
	if err := m.rename(src, dst); err != nil {
		var linkErr *os.LinkError
		if errors.As(err, &linkErr) && errors.Is(linkErr.Err, syscall.EXDEV) {
			if err := copyFileContents(src, dst); err != nil {
				return "", fmt.Errorf("copy file across devices: %w", err)
			}
			if err := m.remove(src); err != nil {
				// Keep the file in exactly one place.
				if rmErr := os.Remove(dst); rmErr != nil {
					m.log.Error().Err(rmErr).Str("path", dst).Msg("copy left behind in quarantine")
				}
				return "", fmt.Errorf("remove source after copy: %w", err)
			}
			return dst, nil
		}
		return "", fmt.Errorf("move file: %w", err)
	}
	return dst, nil
}

// UniqueName returns a path in dir for name that does not exist yet.
func UniqueName(dir, name string) (string, error) {
	return uniqueName(dir, name, nil)
}

func uniqueName(dir, name string, reserved map[string]struct{}) (string, error) {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	candidate := filepath.Join(dir, name)
	for i := 1; ; i++ {
		taken, err := exists(candidate)
		if err != nil {
			return "", err
		}
		if _, r := reserved[candidate]; !taken && !r {
			return candidate, nil
		}
		candidate = filepath.Join(dir, fmt.Sprintf("%s__%d%s", base, i, ext))
	}
}

func exists(path string) (bool, error) {
	_, err := os.Lstat(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

// Plan reports where Move would put each path without touching anything.
// Missing sources appear as failures, as they would in a real batch.
func Plan(paths []string, trashRoot string) Summary {
	var sum Summary
	reserved := make(map[string]struct{}, len(paths))
	for _, src := range paths {
		info, err := os.Stat(src)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			err = ErrMissing
		case err == nil && info.IsDir():
			err = errors.New("is a directory")
		}
		if err != nil {
			sum.Failures = append(sum.Failures, &Error{Path: src, Err: err})
			continue
		}
		dst, err := uniqueName(trashRoot, filepath.Base(src), reserved)
		if err != nil {
			sum.Failures = append(sum.Failures, &Error{Path: src, Err: err})
			continue
		}
		reserved[dst] = struct{}{}
		sum.Moves = append(sum.Moves, Move{From: src, To: dst})
		sum.Moved++
	}
	return sum
}

func copyFileContents(sourcePath, targetPath string) error {
	source, err := os.Open(sourcePath)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer source.Close()

	info, err := source.Stat()
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}

	dest, err := os.OpenFile(targetPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("create destination: %w", err)
	}
	if _, err := io.Copy(dest, source); err != nil {
		dest.Close()
		os.Remove(targetPath)
		return fmt.Errorf("copy data: %w", err)
	}
	if err := dest.Sync(); err != nil {
		dest.Close()
		os.Remove(targetPath)
		return fmt.Errorf("sync destination: %w", err)
	}
	if err := dest.Close(); err != nil {
		os.Remove(targetPath)
		return fmt.Errorf("close destination: %w", err)
	}
	return nil
}
