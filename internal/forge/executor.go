package forge

import (
	"fmt"
	"os"
	"os/exec"
)

// Executor is the single privileged-execution abstraction through which
// every mutation of the live root filesystem is funneled, per the
// privilege-boundary design note. The rest of the engine runs
// unprivileged and never shells out to sudo/fakeroot directly.
type Executor struct {
	Sudo     string // SUDO binary name, e.g. "sudo"
	Fakeroot string // FAKEROOT binary name, e.g. "fakeroot"
	Elevated bool   // whether this executor's commands must run with elevated privileges
}

// NewExecutor builds one executor. The orchestrator calls it twice to
// get its pair: one unprivileged (for fetch/build/stage) and one
// elevated (for installer mutations of the live root).
func NewExecutor(cfg *Config, elevated bool) *Executor {
	return &Executor{Sudo: cfg.Sudo, Fakeroot: cfg.Fakeroot, Elevated: elevated}
}

// Run executes cmd, wrapping it in sudo when this executor is elevated
// and the process is not already root.
func (e *Executor) Run(cmd *exec.Cmd) error {
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}
	if !e.Elevated || os.Geteuid() == 0 {
		return cmd.Run()
	}
	args := append([]string{cmd.Path}, cmd.Args[1:]...)
	sudoCmd := exec.Command(e.Sudo, args...)
	sudoCmd.Dir = cmd.Dir
	sudoCmd.Env = cmd.Env
	sudoCmd.Stdin = cmd.Stdin
	sudoCmd.Stdout = cmd.Stdout
	sudoCmd.Stderr = cmd.Stderr
	return sudoCmd.Run()
}

// MkdirAll creates dir (and parents) through this executor's privilege level.
func (e *Executor) MkdirAll(dir string, mode os.FileMode) error {
	if !e.Elevated || os.Geteuid() == 0 {
		return os.MkdirAll(dir, mode)
	}
	return e.Run(exec.Command("mkdir", "-p", dir))
}

// Remove removes a single path (file or symlink), ignoring "not found".
func (e *Executor) Remove(path string) error {
	if !e.Elevated || os.Geteuid() == 0 {
		err := os.Remove(path)
		if err != nil && os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if err := e.Run(exec.Command("rm", "-f", path)); err != nil {
		return fmt.Errorf("rm %s: %w", path, err)
	}
	return nil
}

// Rmdir removes an empty directory, ignoring "not empty" and "not found".
func (e *Executor) Rmdir(path string) error {
	if !e.Elevated || os.Geteuid() == 0 {
		err := os.Remove(path)
		if err == nil || os.IsNotExist(err) {
			return nil
		}
		// ENOTEMPTY and similar: directory still has content, leave it.
		return nil
	}
	_ = e.Run(exec.Command("rmdir", path))
	return nil
}

// cpCommand builds an external `install` invocation that copies src to
// dst with the given mode, for use through an elevated Executor.
func cpCommand(src, dst string, mode os.FileMode) *exec.Cmd {
	return exec.Command("install", "-m", fmt.Sprintf("%o", mode.Perm()), src, dst)
}

// symlinkCommand builds an external `ln -sf` invocation, for use
// through an elevated Executor.
func symlinkCommand(target, dst string) *exec.Cmd {
	return exec.Command("ln", "-sf", target, dst)
}
