package forge

import "testing"

func TestNaturalLess(t *testing.T) {
	cases := []struct {
		a, b string
		want bool
	}{
		{"1.2", "1.10", true},
		{"1.10", "1.2", false},
		{"1.2.3", "1.2.3", false},
		{"2", "10", true},
		{"1.9", "1.9.1", true},
		{"a", "b", true},
	}
	for _, c := range cases {
		if got := naturalLess(c.a, c.b); got != c.want {
			t.Errorf("naturalLess(%q, %q) = %v, want %v", c.a, c.b, got, c.want)
		}
	}
}

func TestIsInstalledAndManifest(t *testing.T) {
	dbDir := t.TempDir()
	cfg := &Config{DBDir: dbDir}

	if IsInstalled(cfg, "hello", "1.0") {
		t.Fatalf("expected hello-1.0 to not be installed yet")
	}

	mw, err := newManifestWriter(cfg, "hello", "1.0")
	if err != nil {
		t.Fatal(err)
	}
	mw.Append("/usr/local/bin/hello")
	mw.Close()

	if err := writeInstalledFlag(cfg, "hello", "1.0", "2026-08-03T00:00:00Z"); err != nil {
		t.Fatal(err)
	}

	if !IsInstalled(cfg, "hello", "1.0") {
		t.Fatalf("expected hello-1.0 to be installed")
	}

	paths, err := Manifest(cfg, "hello", "1.0")
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != 1 || paths[0] != "/usr/local/bin/hello" {
		t.Fatalf("unexpected manifest contents: %v", paths)
	}
}

func TestListInstalledSorted(t *testing.T) {
	dbDir := t.TempDir()
	cfg := &Config{DBDir: dbDir}

	for _, spec := range []struct{ name, version string }{
		{"bar", "2.1"},
		{"bar", "2.10"},
		{"app", "1.0"},
	} {
		if err := writeInstalledFlag(cfg, spec.name, spec.version, "ts"); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := ListInstalled(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d: %+v", len(entries), entries)
	}
	if entries[0].Name != "app" {
		t.Fatalf("expected app first (alphabetical), got %+v", entries[0])
	}

	versions, err := InstalledVersions(cfg, "bar")
	if err != nil {
		t.Fatal(err)
	}
	if len(versions) != 2 || versions[0] != "2.1" || versions[1] != "2.10" {
		t.Fatalf("expected natural-sorted versions [2.1 2.10], got %v", versions)
	}
}

func TestReadManifestMissingReturnsSentinel(t *testing.T) {
	cfg := &Config{DBDir: t.TempDir()}
	_, err := readManifest(cfg, "ghost", "1.0")
	if err != ErrNoManifest {
		t.Fatalf("expected ErrNoManifest, got %v", err)
	}
}

func TestSplitNameVersion(t *testing.T) {
	name, version, ok := splitNameVersion("libfoo-bar-1.2.3")
	if !ok || name != "libfoo-bar" || version != "1.2.3" {
		t.Fatalf("got name=%q version=%q ok=%v", name, version, ok)
	}
}
