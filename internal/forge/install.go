package forge

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// scratchRoot returns BUILDDIR/install-root.
func scratchRoot(cfg *Config) string {
	return filepath.Join(cfg.BuildDir, "install-root")
}

// Install packages and then installs recipe_dir's build output into the
// live root, recording a per-file manifest.
func Install(cfg *Config, root *Executor, r *Recipe) error {
	tarballPath, err := Pack(cfg, r)
	if err != nil {
		return err
	}
	return InstallArchive(cfg, root, r.Name, r.Version, tarballPath)
}

// InstallArchive installs an already-built package archive into the
// live root. It is split out from Install so a previously packaged
// archive can be (re)installed without rebuilding.
func InstallArchive(cfg *Config, root *Executor, name, version, tarballPath string) error {
	scratch := scratchRoot(cfg)
	if err := os.RemoveAll(scratch); err != nil {
		return fmt.Errorf("clear scratch root: %w", err)
	}
	if err := os.MkdirAll(scratch, 0o755); err != nil {
		return fmt.Errorf("create scratch root: %w", err)
	}

	if err := extractTarZst(tarballPath, scratch); err != nil {
		return fmt.Errorf("extract %s: %w", tarballPath, err)
	}

	mw, err := newManifestWriter(cfg, name, version)
	if err != nil {
		return err
	}
	defer mw.Close()

	err = walkInstallOrder(scratch, func(relPath string, info os.FileInfo, isSymlink bool) error {
		destPath := filepath.Join("/", relPath)

		switch {
		case info.IsDir():
			if err := root.MkdirAll(destPath, 0o755); err != nil {
				return fmt.Errorf("mkdir %s: %w", destPath, err)
			}
		case isSymlink:
			srcPath := filepath.Join(scratch, relPath)
			target, err := os.Readlink(srcPath)
			if err != nil {
				return fmt.Errorf("readlink %s: %w", srcPath, err)
			}
			if err := installSymlink(root, target, destPath); err != nil {
				return fmt.Errorf("symlink %s: %w", destPath, err)
			}
		default:
			srcPath := filepath.Join(scratch, relPath)
			if err := installFile(root, srcPath, destPath, info.Mode()); err != nil {
				return fmt.Errorf("install %s: %w", destPath, err)
			}
		}

		return mw.Append(destPath)
	})
	if err != nil {
		return err
	}

	return writeInstalledFlag(cfg, name, version, time.Now().UTC().Format(time.RFC3339))
}

// walkInstallOrder enumerates every path under scratch (directories
// first-encountered, then their contents) in a stable, deterministic
// order and invokes fn with the path relative to scratch.
func walkInstallOrder(scratch string, fn func(relPath string, info os.FileInfo, isSymlink bool) error) error {
	return filepath.Walk(scratch, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(scratch, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		isSymlink := info.Mode()&os.ModeSymlink != 0
		return fn(rel, info, isSymlink)
	})
}

// installFile copies srcPath to destPath, trying 0755 then 0644 then a
// plain preserving copy, best-effort on the final mode.
func installFile(root *Executor, srcPath, destPath string, mode os.FileMode) error {
	if err := root.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return err
	}
	for _, tryMode := range []os.FileMode{0o755, 0o644, mode} {
		if err := copyFileAs(root, srcPath, destPath, tryMode); err == nil {
			return nil
		}
	}
	return copyFileAs(root, srcPath, destPath, mode)
}

func copyFileAs(root *Executor, srcPath, destPath string, mode os.FileMode) error {
	if !root.Elevated || os.Geteuid() == 0 {
		data, err := os.ReadFile(srcPath)
		if err != nil {
			return err
		}
		return os.WriteFile(destPath, data, mode)
	}
	return root.Run(cpCommand(srcPath, destPath, mode))
}

func installSymlink(root *Executor, target, destPath string) error {
	if err := root.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return err
	}
	if !root.Elevated || os.Geteuid() == 0 {
		_ = os.Remove(destPath)
		return os.Symlink(target, destPath)
	}
	return root.Run(symlinkCommand(target, destPath))
}

// Uninstall reverses a previous install, complete or partial (the
// installed flag is not checked): it reads the
// manifest, applies its paths in reverse order (rmdir for directories,
// ignoring non-empty failures; rm -f for files and symlinks, ignoring
// missing), then deletes the manifest and the installed flag.
func Uninstall(cfg *Config, root *Executor, name, version string) error {
	paths, err := readManifest(cfg, name, version)
	if err != nil {
		if err == ErrNoManifest {
			infof("no manifest for %s-%s, nothing to do", name, version)
			return nil
		}
		return err
	}

	for i := len(paths) - 1; i >= 0; i-- {
		p := paths[i]
		if strings.HasSuffix(p, "/") || isDirEntry(cfg, name, version, p) {
			if err := root.Rmdir(p); err != nil {
				return fmt.Errorf("rmdir %s: %w", p, err)
			}
			continue
		}
		if err := root.Remove(p); err != nil {
			return fmt.Errorf("remove %s: %w", p, err)
		}
	}

	os.Remove(manifestPath(cfg, name, version))
	os.Remove(flagPath(cfg, name, version))
	return nil
}

// isDirEntry reports whether p still exists on disk as a directory.
// The manifest records directories without a trailing slash (the
// installer normalizes paths through filepath.Join), so this is the
// authoritative check at uninstall time.
func isDirEntry(cfg *Config, name, version, p string) bool {
	info, err := os.Lstat(p)
	if err != nil {
		return false
	}
	return info.IsDir()
}
