package forge

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
)

// manifestPath returns DBDIR/<name>-<version>.manifest.
func manifestPath(cfg *Config, name, version string) string {
	return filepath.Join(cfg.DBDir, fmt.Sprintf("%s-%s.manifest", name, version))
}

// flagPath returns DBDIR/<name>-<version>.installed.
func flagPath(cfg *Config, name, version string) string {
	return filepath.Join(cfg.DBDir, fmt.Sprintf("%s-%s.installed", name, version))
}

// manifestWriter appends absolute paths to a manifest file as the
// installer writes them, so a partial install still leaves a manifest
// a subsequent uninstall can reverse.
type manifestWriter struct {
	f *os.File
}

func newManifestWriter(cfg *Config, name, version string) (*manifestWriter, error) {
	if err := os.MkdirAll(cfg.DBDir, 0o755); err != nil {
		return nil, fmt.Errorf("create dbdir %s: %w", cfg.DBDir, err)
	}
	f, err := os.OpenFile(manifestPath(cfg, name, version), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	return &manifestWriter{f: f}, nil
}

func (w *manifestWriter) Append(path string) error {
	_, err := fmt.Fprintln(w.f, path)
	return err
}

func (w *manifestWriter) Close() error {
	return w.f.Close()
}

// readManifest returns the ordered list of paths recorded for (name, version).
func readManifest(cfg *Config, name, version string) ([]string, error) {
	f, err := os.Open(manifestPath(cfg, name, version))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoManifest
		}
		return nil, err
	}
	defer f.Close()

	var paths []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line != "" {
			paths = append(paths, line)
		}
	}
	return paths, scanner.Err()
}

// writeInstalledFlag writes the installed-flag file, which is the
// authoritative "installed" signal, only on full success.
func writeInstalledFlag(cfg *Config, name, version string, ts string) error {
	return os.WriteFile(flagPath(cfg, name, version), []byte(ts+"\n"), 0o644)
}
