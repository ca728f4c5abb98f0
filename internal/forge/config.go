package forge

import (
	"os"
	"runtime"
	"strconv"
)

// Config holds the environment-controlled configuration described in
// the repository's EXTERNAL INTERFACES section. Every field has a
// documented default and can be overridden by the matching environment
// variable at process start.
type Config struct {
	Repo         string // REPO
	BuildDir     string // BUILDDIR
	SrcDir       string // SRCDIR
	PkgDir       string // PKGDIR
	DBDir        string // DBDIR
	LogDir       string // LOGDIR
	HooksDir     string // HOOKSD
	Jobs         int    // JOBS
	Sudo         string // SUDO
	Fakeroot     string // FAKEROOT
	FetchRetries int    // FETCH_RETRIES
	Color        string // COLOR: auto|always|never
	Force        bool   // FORCE
}

// LoadConfig reads the environment once at program start and returns a
// fully-defaulted Config. It never mutates package-global state itself;
// callers thread the returned value through explicitly.
func LoadConfig() *Config {
	cfg := &Config{
		Repo:         envOr("REPO", "/var/forgepkg/repo"),
		BuildDir:     envOr("BUILDDIR", "/var/tmp/forgepkg/build"),
		SrcDir:       envOr("SRCDIR", "/var/cache/forgepkg/sources"),
		PkgDir:       envOr("PKGDIR", "/var/cache/forgepkg/pkg"),
		DBDir:        envOr("DBDIR", "/var/db/forgepkg"),
		LogDir:       envOr("LOGDIR", "/var/log/forgepkg"),
		HooksDir:     envOr("HOOKSD", "/etc/forgepkg/hooks"),
		Jobs:         envInt("JOBS", runtime.NumCPU()),
		Sudo:         envOr("SUDO", "sudo"),
		Fakeroot:     envOr("FAKEROOT", "fakeroot"),
		FetchRetries: envInt("FETCH_RETRIES", 3),
		Color:        envOr("COLOR", "auto"),
		Force:        envBool("FORCE", false),
	}
	return cfg
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v == "1" || v == "true"
}
