package quarantine

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog"
)

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func TestMoveWithMissingFileAndCollision(t *testing.T) {
	root := t.TempDir()
	trash := filepath.Join(root, "_IMF_trash")
	writeFile(t, filepath.Join(trash, "a.jpg"), "already here")

	a := writeFile(t, filepath.Join(root, "x", "a.jpg"), "first")
	b := writeFile(t, filepath.Join(root, "b.png"), "second")
	missing := filepath.Join(root, "gone.jpg")

	sum, err := New(zerolog.Nop()).Move([]string{a, missing, b}, trash)
	if err != nil {
		t.Fatalf("Move: %v", err)
	}
	if sum.Moved != 2 {
		t.Fatalf("moved = %d, want 2", sum.Moved)
	}
	errs := sum.Errors()
	if len(errs) != 1 {
		t.Fatalf("errors = %v, want exactly one", errs)
	}
	if !strings.Contains(errs[0], missing) {
		t.Errorf("error %q does not name %s", errs[0], missing)
	}
	if !errors.Is(sum.Failures[0], ErrMissing) {
		t.Errorf("failure = %v, want ErrMissing", sum.Failures[0])
	}

	for path, want := range map[string]string{
		filepath.Join(trash, "a.jpg"):    "already here",
		filepath.Join(trash, "a__1.jpg"): "first",
		filepath.Join(trash, "b.png"):    "second",
	} {
		got, err := os.ReadFile(path)
		if err != nil {
			t.Errorf("read %s: %v", path, err)
			continue
		}
		if string(got) != want {
			t.Errorf("%s = %q, want %q", path, got, want)
		}
	}
	for _, src := range []string{a, b} {
		if _, err := os.Stat(src); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("source %s still present (err=%v)", src, err)
		}
	}
}

func TestMoveCreatesTrashRoot(t *testing.T) {
	root := t.TempDir()
	src := writeFile(t, filepath.Join(root, "pic.webp"), "x")
	trash := filepath.Join(root, "deep", "trash")
	sum, err := New(zerolog.Nop()).Move([]string{src}, trash)
	if err != nil {
		t.Fatalf("Move: %v", err)
	}
	if sum.Moved != 1 || len(sum.Failures) != 0 {
		t.Fatalf("summary = %+v", sum)
	}
	if sum.Moves[0].To != filepath.Join(trash, "pic.webp") {
		t.Errorf("destination = %s", sum.Moves[0].To)
	}
}

func TestUniqueName(t *testing.T) {
	dir := t.TempDir()
	got, err := UniqueName(dir, "photo.jpg")
	if err != nil {
		t.Fatal(err)
	}
	if got != filepath.Join(dir, "photo.jpg") {
		t.Fatalf("free name = %s", got)
	}

	writeFile(t, filepath.Join(dir, "photo.jpg"), "")
	writeFile(t, filepath.Join(dir, "photo__1.jpg"), "")
	got, err = UniqueName(dir, "photo.jpg")
	if err != nil {
		t.Fatal(err)
	}
	if got != filepath.Join(dir, "photo__2.jpg") {
		t.Fatalf("collision name = %s, want photo__2.jpg", got)
	}

	writeFile(t, filepath.Join(dir, "README"), "")
	got, _ = UniqueName(dir, "README")
	if got != filepath.Join(dir, "README__1") {
		t.Fatalf("extensionless collision = %s", got)
	}
}

func TestMoveSameNameTwiceInBatch(t *testing.T) {
	root := t.TempDir()
	trash := filepath.Join(root, "trash")
	one := writeFile(t, filepath.Join(root, "a", "img.png"), "1")
	two := writeFile(t, filepath.Join(root, "b", "img.png"), "2")

	sum, err := New(zerolog.Nop()).Move([]string{one, two}, trash)
	if err != nil {
		t.Fatalf("Move: %v", err)
	}
	if sum.Moved != 2 {
		t.Fatalf("moved = %d", sum.Moved)
	}
	if sum.Moves[1].To != filepath.Join(trash, "img__1.png") {
		t.Errorf("second destination = %s", sum.Moves[1].To)
	}
}

func TestMoveCrossDeviceFallback(t *testing.T) {
	root := t.TempDir()
	trash := filepath.Join(root, "trash")
	src := writeFile(t, filepath.Join(root, "img.bmp"), "payload")

	m := New(zerolog.Nop())
	m.rename = func(from, to string) error {
		return &os.LinkError{Op: "rename", Old: from, New: to, Err: syscall.EXDEV}
	}
	sum, err := m.Move([]string{src}, trash)
	if err != nil {
		t.Fatalf("Move: %v", err)
	}
	if sum.Moved != 1 {
		t.Fatalf("summary = %+v", sum)
	}
	got, err := os.ReadFile(filepath.Join(trash, "img.bmp"))
	if err != nil || string(got) != "payload" {
		t.Fatalf("copied content = %q, %v", got, err)
	}
	if _, err := os.Stat(src); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("source not removed after copy")
	}
}

func TestMoveCrossDeviceSourceRemoveFails(t *testing.T) {
	root := t.TempDir()
	trash := filepath.Join(root, "trash")
	src := writeFile(t, filepath.Join(root, "img.bmp"), "payload")

	errBusy := errors.New("device or resource busy")
	m := New(zerolog.Nop())
	m.rename = func(from, to string) error {
		return &os.LinkError{Op: "rename", Old: from, New: to, Err: syscall.EXDEV}
	}
	m.remove = func(string) error { return errBusy }
	sum, err := m.Move([]string{src}, trash)
	if err != nil {
		t.Fatalf("Move: %v", err)
	}
	if sum.Moved != 0 || len(sum.Failures) != 1 || !errors.Is(sum.Failures[0], errBusy) {
		t.Fatalf("summary = %+v", sum)
	}
	if _, err := os.Stat(src); err != nil {
		t.Errorf("source gone: %v", err)
	}
	if _, err := os.Stat(filepath.Join(trash, "img.bmp")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("copy left in quarantine: %v", err)
	}
}

func TestMoveRenameFailureContinues(t *testing.T) {
	root := t.TempDir()
	bad := writeFile(t, filepath.Join(root, "bad.jpg"), "")
	good := writeFile(t, filepath.Join(root, "good.jpg"), "")

	m := New(zerolog.Nop())
	m.rename = func(from, to string) error {
		if from == bad {
			return &os.LinkError{Op: "rename", Old: from, New: to, Err: syscall.EACCES}
		}
		return os.Rename(from, to)
	}
	sum, err := m.Move([]string{bad, good}, filepath.Join(root, "trash"))
	if err != nil {
		t.Fatalf("Move: %v", err)
	}
	if sum.Moved != 1 || len(sum.Failures) != 1 || sum.Failures[0].Path != bad {
		t.Fatalf("summary = %+v", sum)
	}
}

func TestMoveLocked(t *testing.T) {
	trash := t.TempDir()
	other := flock.New(filepath.Join(trash, LockName))
	ok, err := other.TryLock()
	if err != nil || !ok {
		t.Skipf("cannot take lock in test environment: ok=%v err=%v", ok, err)
	}
	defer other.Unlock()

	// flock locks are per open file description, so a second handle in the
	// same process still conflicts.
	_, err = New(zerolog.Nop()).Move(nil, trash)
	if err == nil {
		t.Fatal("expected lock conflict")
	}
}

func TestPlanDoesNotMove(t *testing.T) {
	root := t.TempDir()
	trash := filepath.Join(root, "trash")
	writeFile(t, filepath.Join(trash, "img.png"), "old")
	one := writeFile(t, filepath.Join(root, "a", "img.png"), "1")
	two := writeFile(t, filepath.Join(root, "b", "img.png"), "2")
	missing := filepath.Join(root, "nope.png")

	sum := Plan([]string{one, missing, two}, trash)
	if sum.Moved != 2 || len(sum.Failures) != 1 {
		t.Fatalf("summary = %+v", sum)
	}
	if sum.Moves[0].To != filepath.Join(trash, "img__1.png") || sum.Moves[1].To != filepath.Join(trash, "img__2.png") {
		t.Errorf("planned = %+v", sum.Moves)
	}
	for _, p := range []string{one, two} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("plan touched %s: %v", p, err)
		}
	}
}
