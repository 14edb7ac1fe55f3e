package preflight

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"pagecapture/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if result := CheckDirectoryAccess("test", f); result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckDirectoryAccess_Blank(t *testing.T) {
	if result := CheckDirectoryAccess("test", "  "); result.Passed {
		t.Fatal("expected failure for blank path")
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	if results := RunAll(nil); results != nil {
		t.Fatalf("expected nil results, got %v", results)
	}
}

func TestRunAll_ChecksConfiguredDirectories(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}
	results := RunAll(cfg)
	if len(results) != 3 {
		t.Fatalf("expected 3 checks, got %d", len(results))
	}
	if err := Failed(results); err != nil {
		t.Fatalf("expected all checks to pass: %v", err)
	}

	disabled := testsupport.NewConfig(t, testsupport.WithStagingDisabled())
	if err := disabled.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}
	if results := RunAll(disabled); len(results) != 2 {
		t.Fatalf("staging disabled should skip its check, got %d results", len(results))
	}
}

func TestFailedCombinesFailures(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	err := Failed(RunAll(cfg))
	if err == nil {
		t.Fatal("expected failure for missing directories")
	}
	for _, name := range []string{"Watch directory", "Log directory", "Staging directory"} {
		if !strings.Contains(err.Error(), name) {
			t.Fatalf("error %q should mention %s", err, name)
		}
	}
}
