package forge

import (
	"os"
	"os/exec"
	"path/filepath"
)

// Sync fast-forward-pulls the repository if it is a git or svn working
// copy, shelling out to the VCS binary rather than embedding a VCS
// library. A repository that is neither is a no-op with a warning, not
// a fatal error.
func Sync(cfg *Config) error {
	if dirExists(filepath.Join(cfg.Repo, ".git")) {
		cmd := exec.Command("git", "-C", cfg.Repo, "pull", "--ff-only")
		cmd.Stdout, cmd.Stderr = os.Stdout, os.Stderr
		return cmd.Run()
	}
	if dirExists(filepath.Join(cfg.Repo, ".svn")) {
		cmd := exec.Command("svn", "update", cfg.Repo)
		cmd.Stdout, cmd.Stderr = os.Stdout, os.Stderr
		return cmd.Run()
	}
	warnf("%s is not a git or svn working copy; sync is a no-op", cfg.Repo)
	return nil
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
