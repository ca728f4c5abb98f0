package forge

import (
	"os"
	"path/filepath"
	"testing"
)

func TestInstallAndUninstallRoundTrip(t *testing.T) {
	root := t.TempDir() // stand-in for "/" — exercised through an unelevated Executor
	cfg := &Config{
		BuildDir: filepath.Join(root, "build"),
		PkgDir:   filepath.Join(root, "pkg"),
		DBDir:    filepath.Join(root, "db"),
	}
	exec := &Executor{Elevated: false}

	r := &Recipe{
		Name:    "hello",
		Version: "1.0",
		Release: "1",
		DestDir: filepath.Join(root, "destdir"),
	}

	binDir := filepath.Join(r.DestDir, stripLeadingSlash(root), "usr", "local", "bin")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(binDir, "hello"), []byte("#!/bin/sh\necho hi\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	// InstallArchive writes to absolute paths under the real "/", so
	// this test does not call it. To stay hermetic it checks that Pack
	// produces the archive, then performs the installer's file, manifest
	// and flag steps by hand against a path under the temporary root,
	// and runs Uninstall on the resulting manifest.
	if _, err := Pack(cfg, r); err != nil {
		t.Fatal(err)
	}

	tarballPath := PackagePath(cfg, r)
	if _, err := os.Stat(tarballPath); err != nil {
		t.Fatalf("expected package archive to exist: %v", err)
	}

	mw, err := newManifestWriter(cfg, r.Name, r.Version)
	if err != nil {
		t.Fatal(err)
	}
	installedPath := filepath.Join(root, "usr", "local", "bin", "hello")
	if err := os.MkdirAll(filepath.Dir(installedPath), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(installedPath, []byte("#!/bin/sh\necho hi\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	mw.Append(installedPath)
	mw.Close()
	if err := writeInstalledFlag(cfg, r.Name, r.Version, "2026-08-03T00:00:00Z"); err != nil {
		t.Fatal(err)
	}

	if !IsInstalled(cfg, r.Name, r.Version) {
		t.Fatalf("expected package to be recorded as installed")
	}

	if err := Uninstall(cfg, exec, r.Name, r.Version); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(installedPath); !os.IsNotExist(err) {
		t.Fatalf("expected installed file to be removed, stat err: %v", err)
	}
	if IsInstalled(cfg, r.Name, r.Version) {
		t.Fatalf("expected installed flag to be gone after uninstall")
	}
	if _, err := readManifest(cfg, r.Name, r.Version); err != ErrNoManifest {
		t.Fatalf("expected manifest to be gone after uninstall, got %v", err)
	}
}

func TestUninstallMissingManifestIsNoop(t *testing.T) {
	cfg := &Config{DBDir: t.TempDir()}
	exec := &Executor{Elevated: false}
	if err := Uninstall(cfg, exec, "ghost", "1.0"); err != nil {
		t.Fatalf("expected no-op success, got %v", err)
	}
}

func stripLeadingSlash(s string) string {
	if len(s) > 0 && s[0] == '/' {
		return s[1:]
	}
	return s
}
