package forge

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"lukechampine.com/blake3"
)

func hashOf(t *testing.T, data []byte) string {
	t.Helper()
	h := blake3.New(32, nil)
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

func TestVerifyHashAcceptsMatchingDigest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hello-1.0.tar.gz")
	content := []byte("tarball bytes")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}

	r := &Recipe{SourceHash: []string{hashOf(t, content)}}
	if err := verifyHash(path, r, 0); err != nil {
		t.Fatalf("expected matching hash to verify, got %v", err)
	}
}

func TestVerifyHashRejectsMismatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hello-1.0.tar.gz")
	if err := os.WriteFile(path, []byte("tarball bytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	r := &Recipe{SourceHash: []string{"0000000000000000000000000000000000000000000000000000000000000000"}}
	if err := verifyHash(path, r, 0); err == nil {
		t.Fatalf("expected a hash mismatch to be reported")
	}
}

func TestVerifyHashSkippedWhenNoHashDeclared(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hello-1.0.tar.gz")
	if err := os.WriteFile(path, []byte("tarball bytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	r := &Recipe{}
	if err := verifyHash(path, r, 0); err != nil {
		t.Fatalf("expected no error when no hash is declared, got %v", err)
	}
}

func TestFetchCacheHitSkipsNetworkAndVerifies(t *testing.T) {
	cfg := &Config{SrcDir: t.TempDir()}
	r := &Recipe{
		Name:       "hello",
		Version:    "1.0",
		SourceURLs: []string{"https://example.invalid/hello-1.0.tar.gz"},
	}

	dir := sourceCacheDir(cfg, r)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	content := []byte("cached tarball")
	cachedPath := filepath.Join(dir, "hello-1.0.tar.gz")
	if err := os.WriteFile(cachedPath, content, 0o644); err != nil {
		t.Fatal(err)
	}
	r.SourceHash = []string{hashOf(t, content)}

	// No network access is reachable from this test environment; a
	// cache hit must resolve without ever dialing out.
	if err := Fetch(cfg, r); err != nil {
		t.Fatalf("expected cache hit to succeed without network access, got %v", err)
	}
}

func TestFetchCacheHitDetectsCorruption(t *testing.T) {
	cfg := &Config{SrcDir: t.TempDir()}
	r := &Recipe{
		Name:       "hello",
		Version:    "1.0",
		SourceURLs: []string{"https://example.invalid/hello-1.0.tar.gz"},
		SourceHash: []string{"0000000000000000000000000000000000000000000000000000000000000000"},
	}

	dir := sourceCacheDir(cfg, r)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "hello-1.0.tar.gz"), []byte("corrupted"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := Fetch(cfg, r); err == nil {
		t.Fatalf("expected a cached-but-corrupted source to fail integrity verification")
	}
}
