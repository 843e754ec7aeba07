// Package walk enumerates candidate image files under a directory tree.
package walk

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// ErrNotDir is returned when the walk root is not a directory.
var ErrNotDir = errors.New("not a directory")

var errStop = errors.New("walk stopped")

// Options configures a Walker.
type Options struct {
	// Extensions is the case-insensitive allow-list, with or without dots.
	Extensions []string
	// FollowSymlinks descends into symlinked directories. Symlinks to
	// regular files are always reported.
	FollowSymlinks bool
	// SkipDirs names directories (by base name) that are never entered.
	SkipDirs []string
	Logger   zerolog.Logger
}

// Walker enumerates files lazily. A Walker holds no per-walk state and may
// be reused and shared.
type Walker struct {
	exts   map[string]struct{}
	skip   map[string]struct{}
	follow bool
	log    zerolog.Logger
}

// New returns a Walker for opts.
func New(opts Options) *Walker {
	w := &Walker{
		exts:   make(map[string]struct{}, len(opts.Extensions)),
		skip:   make(map[string]struct{}, len(opts.SkipDirs)),
		follow: opts.FollowSymlinks,
		log:    opts.Logger,
	}
	for _, ext := range opts.Extensions {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext != "" {
			w.exts["."+ext] = struct{}{}
		}
	}
	for _, name := range opts.SkipDirs {
		if name != "" {
			w.skip[name] = struct{}{}
		}
	}
	return w
}

// Match reports whether path has an allowed extension.
func (w *Walker) Match(path string) bool {
	_, ok := w.exts[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Walk calls fn with the absolute path of every matching file under root, in
// lexical order per directory. Unreadable subdirectories are skipped. A
// non-nil error from fn, or the context ending, stops the walk and is
// returned.
func (w *Walker) Walk(ctx context.Context, root string, fn func(path string) error) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolve %q: %w", root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s: %w", abs, ErrNotDir)
	}

	visited := make(map[fileID]struct{})
	if id, err := identify(abs); err == nil {
		visited[id] = struct{}{}
	}
	return w.walkDir(ctx, abs, visited, fn)
}

func (w *Walker) walkDir(ctx context.Context, dir string, visited map[fileID]struct{}, fn func(string) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		w.log.Debug().Err(err).Str("dir", dir).Msg("skipping unreadable directory")
		if len(entries) == 0 {
			return nil
		}
	}
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		typ := entry.Type()
		if typ&fs.ModeSymlink != 0 {
			info, err := os.Stat(path)
			if err != nil {
				continue // dangling
			}
			typ = info.Mode().Type()
			if typ.IsDir() && !w.follow {
				continue
			}
		}

		switch {
		case typ.IsDir():
			if _, skip := w.skip[entry.Name()]; skip {
				continue
			}
			if id, err := identify(path); err == nil {
				if _, seen := visited[id]; seen {
					w.log.Debug().Str("dir", path).Msg("directory already visited")
					continue
				}
				visited[id] = struct{}{}
			}
			if err := w.walkDir(ctx, path, visited, fn); err != nil {
				return err
			}
		case typ.IsRegular():
			if !w.Match(path) {
				continue
			}
			if err := fn(path); err != nil {
				return err
			}
		}
	}
	return nil
}

// Paths returns a lazy sequence over the matching files under root. Each
// range over it starts a fresh walk. A walk failure is yielded once as the
// final element with an empty path.
func (w *Walker) Paths(ctx context.Context, root string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		err := w.Walk(ctx, root, func(path string) error {
			if !yield(path, nil) {
				return errStop
			}
			return nil
		})
		if err != nil && !errors.Is(err, errStop) {
			yield("", err)
		}
	}
}
