package forge

import (
	"os"
	"path/filepath"
	"testing"
)

func writeHookScript(t *testing.T, dir, name, body string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatal(err)
	}
}

func TestHookRunnerRunsInLexicographicOrder(t *testing.T) {
	hooksDir := t.TempDir()
	logPath := filepath.Join(hooksDir, "order.log")

	writeHookScript(t, hooksDir, "pre-build-20-second.sh", `echo second >> `+logPath)
	writeHookScript(t, hooksDir, "pre-build-10-first.sh", `echo first >> `+logPath)
	writeHookScript(t, hooksDir, "post-build-99-ignored.sh", `echo ignored >> `+logPath)

	h := &HookRunner{Dir: hooksDir}
	r := &Recipe{Name: "hello", Version: "1.0", Dir: hooksDir, Vars: map[string]string{}}
	cfg := &Config{}

	h.Run(PhasePreBuild, r, cfg)

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "first\nsecond\n" {
		t.Fatalf("expected hooks to run in lexicographic order, got %q", data)
	}
}

func TestHookRunnerMissingDirIsNotFatal(t *testing.T) {
	h := &HookRunner{Dir: filepath.Join(t.TempDir(), "does-not-exist")}
	r := &Recipe{Name: "hello", Version: "1.0", Vars: map[string]string{}}
	cfg := &Config{}
	// Must not panic or otherwise abort.
	h.Run(PhasePreBuild, r, cfg)
}

func TestHookRunnerFailureIsNonFatal(t *testing.T) {
	hooksDir := t.TempDir()
	writeHookScript(t, hooksDir, "pre-build-fail.sh", "exit 1")

	h := &HookRunner{Dir: hooksDir}
	r := &Recipe{Name: "hello", Version: "1.0", Vars: map[string]string{}}
	cfg := &Config{}
	h.Run(PhasePreBuild, r, cfg) // should only warn, not panic
}
