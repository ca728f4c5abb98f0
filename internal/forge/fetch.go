package forge

import (
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/sys/unix"
	"lukechampine.com/blake3"
)

var httpClient = &http.Client{Timeout: 10 * time.Minute}

// sourceCacheDir returns SRCDIR/<name>-<version>.
func sourceCacheDir(cfg *Config, r *Recipe) string {
	return filepath.Join(cfg.SrcDir, fmt.Sprintf("%s-%s", r.Name, r.Version))
}

// Fetch retrieves every URL in r.SourceURLs into the source cache,
// skipping files that already exist, and clones or fast-forward-pulls
// r.GitURL if set. Re-fetch is idempotent by filename.
func Fetch(cfg *Config, r *Recipe) error {
	dir := sourceCacheDir(cfg, r)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create source cache dir %s: %w", dir, err)
	}

	for i, url := range r.SourceURLs {
		dest := filepath.Join(dir, filepath.Base(url))
		if _, err := os.Stat(dest); err == nil {
			if err := verifyHash(dest, r, i); err != nil {
				return err
			}
			continue // cache hit, no network I/O
		}

		if err := fetchWithRetries(url, dest, cfg.FetchRetries); err != nil {
			return fmt.Errorf("fetch %s: %w", url, err)
		}
		if err := verifyHash(dest, r, i); err != nil {
			return err
		}
	}

	if r.GitURL != "" {
		if err := fetchGit(dir, r.GitURL); err != nil {
			return fmt.Errorf("fetch git %s: %w", r.GitURL, err)
		}
	}

	return nil
}

func verifyHash(path string, r *Recipe, idx int) error {
	if idx >= len(r.SourceHash) {
		return nil
	}
	want := strings.ToLower(r.SourceHash[idx])
	if want == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("verify %s: %w", path, err)
	}
	defer f.Close()
	h := blake3.New(32, nil)
	if _, err := io.Copy(h, f); err != nil {
		return fmt.Errorf("hash %s: %w", path, err)
	}
	got := hex.EncodeToString(h.Sum(nil))
	if got != want {
		return fmt.Errorf("integrity mismatch for %s: want %s, got %s", path, want, got)
	}
	return nil
}

func fetchWithRetries(url, dest string, retries int) error {
	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			warnf("retrying fetch of %s (attempt %d/%d)", url, attempt+1, retries+1)
			time.Sleep(time.Duration(attempt) * time.Second)
		}
		if err := downloadFile(url, dest); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}
	return lastErr
}

// downloadFile streams url to a temp file alongside dest, then renames
// it into place, so a failed or interrupted fetch never leaves a
// partial file at the final cache path.
func downloadFile(url, dest string) error {
	lockPath := dest + ".lock"
	lock, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("open lock file: %w", err)
	}
	defer lock.Close()
	if err := unix.Flock(int(lock.Fd()), unix.LOCK_EX); err != nil {
		return fmt.Errorf("lock %s: %w", lockPath, err)
	}
	defer unix.Flock(int(lock.Fd()), unix.LOCK_UN)
	defer os.Remove(lockPath)

	if _, err := os.Stat(dest); err == nil {
		return nil // someone else finished the fetch while we waited on the lock
	}

	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("HTTP %d fetching %s", resp.StatusCode, url)
	}

	tmp := dest + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}

	bar := progressbar.DefaultBytes(resp.ContentLength, filepath.Base(dest))
	_, err = io.Copy(io.MultiWriter(out, bar), resp.Body)
	out.Close()
	if err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dest)
}

// fetchGit clones gitURL into dir/<basename-without-.git>, or
// fast-forward pulls it if the clone already exists.
func fetchGit(dir, gitURL string) error {
	base := strings.TrimSuffix(filepath.Base(gitURL), ".git")
	clonePath := filepath.Join(dir, base)

	if _, err := os.Stat(filepath.Join(clonePath, ".git")); err == nil {
		cmd := exec.Command("git", "-C", clonePath, "pull", "--ff-only")
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		return cmd.Run()
	}

	cmd := exec.Command("git", "clone", gitURL, clonePath)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
