package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/artyom/imgmatch/internal/config"
	"github.com/artyom/imgmatch/internal/report"
	"github.com/artyom/imgmatch/internal/testsupport"
)

func runCLI(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(stdin))
	missing := filepath.Join(t.TempDir(), "absent.toml")
	cmd.SetArgs(append([]string{"--config", missing, "--log-level", "warn"}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

type library struct {
	query string
	root  string
	copy  string
}

func newLibrary(t *testing.T) library {
	t.Helper()
	base := t.TempDir()
	lib := library{
		query: testsupport.WriteImage(t, filepath.Join(base, "query.png"), testsupport.Pattern(11, 160, 160)),
		root:  filepath.Join(base, "photos"),
	}
	lib.copy = testsupport.WriteImage(t, filepath.Join(lib.root, "copy.png"), testsupport.Pattern(11, 160, 160))
	testsupport.WriteImage(t, filepath.Join(lib.root, "other.png"), testsupport.Pattern(12, 160, 160))
	testsupport.WriteGarbage(t, filepath.Join(lib.root, "broken.jpg"))
	return lib
}

func TestConfigInitShowValidate(t *testing.T) {
	out, _, err := runCLI(t, "", "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")

	target := filepath.Join(t.TempDir(), "nested", "config.toml")
	out, _, err = runCLI(t, "", "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, _, _, err := config.Load(target); err != nil {
		t.Fatalf("sample config does not load: %v", err)
	}

	if _, _, err := runCLI(t, "", "config", "init", "--path", target); err == nil {
		t.Fatal("second init without --overwrite succeeded")
	}
	if _, _, err := runCLI(t, "", "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("init --overwrite: %v", err)
	}

	out, _, err = runCLI(t, "", "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "hash_threshold = 12")
	requireContains(t, out, "_IMF_trash")
}

func TestScanCSV(t *testing.T) {
	lib := newLibrary(t)
	out, stderr, err := runCLI(t, "", "scan", lib.query, lib.root, "--format", "csv", "--workers", "2", "--max-features", "300")
	if err != nil {
		t.Fatalf("scan: %v\n%s", err, stderr)
	}
	paths, err := report.ReadPaths(strings.NewReader(out))
	if err != nil {
		t.Fatalf("ReadPaths: %v\n%s", err, out)
	}
	if len(paths) == 0 || paths[0] != lib.copy {
		t.Fatalf("paths = %q, want %s first", paths, lib.copy)
	}
	requireContains(t, stderr, "Scanned 3 files")
	requireContains(t, stderr, "1 unreadable")
}

func TestScanRejectsBadFlags(t *testing.T) {
	lib := newLibrary(t)

	_, _, err := runCLI(t, "", "scan", lib.query, lib.root, "--threshold", "65")
	var cerr *config.Error
	if !errors.As(err, &cerr) || cerr.Key != "scan.hash_threshold" {
		t.Fatalf("err = %v, want config error for scan.hash_threshold", err)
	}

	if _, _, err := runCLI(t, "", "scan", lib.query, lib.root, "--format", "xml"); err == nil {
		t.Fatal("unknown format accepted")
	}
	if _, _, err := runCLI(t, "", "scan", lib.query); err == nil {
		t.Fatal("missing directory argument accepted")
	}
}

func TestScanTopAndQuarantine(t *testing.T) {
	lib := newLibrary(t)
	out, stderr, err := runCLI(t, "", "scan", lib.query, lib.root,
		"--format", "tsv", "--top", "1", "--max-features", "300", "--quarantine", "--yes")
	if err != nil {
		t.Fatalf("scan: %v\n%s", err, stderr)
	}
	requireContains(t, out, "Moved 1 files")
	moved := filepath.Join(lib.root, "_IMF_trash", "copy.png")
	if _, err := os.Stat(moved); err != nil {
		t.Fatalf("quarantined file missing: %v", err)
	}
	if _, err := os.Stat(lib.copy); !os.IsNotExist(err) {
		t.Fatalf("original still present: %v", err)
	}

	// The quarantine folder is not rescanned.
	out, stderr, err = runCLI(t, "", "scan", lib.query, lib.root, "--format", "csv", "--threshold", "0")
	if err != nil {
		t.Fatalf("rescan: %v\n%s", err, stderr)
	}
	if strings.Contains(out, "_IMF_trash") {
		t.Fatalf("rescan reported quarantined file:\n%s", out)
	}
}

func TestQuarantineCommand(t *testing.T) {
	base := t.TempDir()
	root := filepath.Join(base, "photos")
	a := testsupport.WriteImage(t, filepath.Join(root, "a.png"), testsupport.Pattern(1, 32, 32))
	b := testsupport.WriteImage(t, filepath.Join(root, "sub", "a.png"), testsupport.Pattern(2, 32, 32))
	missing := filepath.Join(root, "gone.png")

	csvPath := filepath.Join(base, "report.csv")
	var buf bytes.Buffer
	recs := []report.Record{{Rank: 1, Path: a}, {Rank: 2, Path: missing}, {Rank: 3, Path: b}}
	if err := report.Write(&buf, report.FormatCSV, recs); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(csvPath, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	out, _, err := runCLI(t, "", "quarantine", "--root", root, "--from-csv", csvPath, "--dry-run")
	if err != nil {
		t.Fatalf("dry run: %v", err)
	}
	requireContains(t, out, "Dry run: 2 of 3")
	if _, err := os.Stat(a); err != nil {
		t.Fatalf("dry run moved a file: %v", err)
	}

	_, _, err = runCLI(t, "n\n", "quarantine", "--root", root, "--from-csv", csvPath)
	if !errors.Is(err, errAborted) {
		t.Fatalf("declined prompt err = %v, want errAborted", err)
	}

	out, stderr, err := runCLI(t, "y\n", "quarantine", "--root", root, "--from-csv", csvPath)
	if err == nil {
		t.Fatal("expected an error for the missing file")
	}
	requireContains(t, out, "Moved 2 files")
	requireContains(t, stderr, missing)
	trash := filepath.Join(root, "_IMF_trash")
	for _, name := range []string{"a.png", "a__1.png"} {
		if _, err := os.Stat(filepath.Join(trash, name)); err != nil {
			t.Errorf("%s not in quarantine: %v", name, err)
		}
	}
}

func TestQuarantineNeedsTarget(t *testing.T) {
	if _, _, err := runCLI(t, "", "quarantine", "/tmp/x.png", "--yes"); err == nil {
		t.Fatal("expected error without --root or --trash")
	}
	if _, _, err := runCLI(t, "", "quarantine", "--root", t.TempDir()); err == nil {
		t.Fatal("expected error without paths")
	}
}

func TestTrimResults(t *testing.T) {
	lib := newLibrary(t)
	out, _, err := runCLI(t, "", "scan", lib.query, lib.root, "--format", "csv", "--threshold", "64", "--max-score", "0.0001", "--max-features", "300")
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	paths, err := report.ReadPaths(strings.NewReader(out))
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != 1 || paths[0] != lib.copy {
		t.Fatalf("paths = %q, want only the identical copy", paths)
	}
}
