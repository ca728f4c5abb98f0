package forge

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// BuildSystem is the tagged variant the build driver dispatches over,
// per the design note preferring a variant type to chained presence
// tests.
type BuildSystem int

const (
	BuildNone BuildSystem = iota
	BuildMeson
	BuildCMake
	BuildAutoconf
	BuildMake
	BuildRecipeProvided
)

// RecipeBuildFunc is the extension point for build systems a recipe
// implements itself (the final fallback in the priority order).
type RecipeBuildFunc func(root, destdir string, r *Recipe) error

// DetectBuildSystem inspects root and the recipe's declared opts to
// choose a BuildSystem, in priority order: meson, cmake, autoconf,
// plain make, then recipe-provided.
func DetectBuildSystem(root string, r *Recipe, hasRecipeFunc bool) BuildSystem {
	if fileExists(filepath.Join(root, "meson.build")) || r.MesonOpts != "" {
		return BuildMeson
	}
	if fileExists(filepath.Join(root, "CMakeLists.txt")) || r.CMakeOpts != "" {
		return BuildCMake
	}
	if fileExists(filepath.Join(root, "configure")) {
		return BuildAutoconf
	}
	if hasMakefileAllTarget(root) {
		return BuildMake
	}
	if hasRecipeFunc {
		return BuildRecipeProvided
	}
	return BuildNone
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func hasMakefileAllTarget(root string) bool {
	for _, name := range []string{"Makefile", "makefile", "GNUmakefile"} {
		data, err := os.ReadFile(filepath.Join(root, name))
		if err != nil {
			continue
		}
		for _, line := range strings.Split(string(data), "\n") {
			if strings.HasPrefix(line, "all:") || strings.HasPrefix(line, "all :") {
				return true
			}
		}
	}
	return false
}

// BuildOptions carries per-invocation knobs that do not belong on the
// Recipe record itself.
type BuildOptions struct {
	Quiet       bool
	RecipeBuild RecipeBuildFunc // set when the recipe supplies its own build function
}

// Build runs the full build pipeline for one recipe directory: pre-build
// hook, unpack+patch, erase+recreate destdir, detect and run the
// build system, post-build hook. The build-system commands' output is
// appended to LOGDIR/<name>-<version>.log; the patch commands run by
// Unpack write to the process's stdout and stderr, not to that log.
func Build(cfg *Config, exec_ *Executor, hooks *HookRunner, r *Recipe, opts BuildOptions) error {
	if hooks != nil {
		hooks.Run(PhasePreBuild, r, cfg)
	}

	root, err := Unpack(cfg, r)
	if err != nil {
		return err
	}
	if r.BuildSubdir != "" {
		root = filepath.Join(root, r.BuildSubdir)
	}

	if err := os.RemoveAll(r.DestDir); err != nil {
		return fmt.Errorf("clear destdir %s: %w", r.DestDir, err)
	}
	if err := os.MkdirAll(r.DestDir, 0o755); err != nil {
		return fmt.Errorf("create destdir %s: %w", r.DestDir, err)
	}

	logPath := filepath.Join(cfg.LogDir, fmt.Sprintf("%s-%s.log", r.Name, r.Version))
	if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open build log %s: %w", logPath, err)
	}
	defer logFile.Close()

	sys := DetectBuildSystem(root, r, opts.RecipeBuild != nil)
	if err := runBuildSystem(sys, root, r, logFile, opts); err != nil {
		return fmt.Errorf("build %s-%s: %w", r.Name, r.Version, err)
	}

	if hooks != nil {
		hooks.Run(PhasePostBuild, r, cfg)
	}
	return nil
}

func runBuildSystem(sys BuildSystem, root string, r *Recipe, log *os.File, opts BuildOptions) error {
	run := func(dir string, name string, args ...string) error {
		cmd := exec.Command(name, args...)
		cmd.Dir = dir
		cmd.Stdout = log
		cmd.Stderr = log
		if err := cmd.Run(); err != nil {
			return fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), err)
		}
		return nil
	}

	switch sys {
	case BuildMeson:
		if err := run(root, "meson", append([]string{"setup", "build"}, strings.Fields(r.MesonOpts)...)...); err != nil {
			return err
		}
		if err := run(root, "ninja", append([]string{"-C", "build"}, strings.Fields(r.MakeOpts)...)...); err != nil {
			return err
		}
		cmd := exec.Command("ninja", "-C", "build", "install")
		cmd.Dir = root
		cmd.Env = append(os.Environ(), "DESTDIR="+r.DestDir)
		cmd.Stdout, cmd.Stderr = log, log
		return cmd.Run()

	case BuildCMake:
		buildDir := filepath.Join(root, "build")
		if err := os.MkdirAll(buildDir, 0o755); err != nil {
			return err
		}
		if err := run(buildDir, "cmake", append([]string{".."}, strings.Fields(r.CMakeOpts)...)...); err != nil {
			return err
		}
		if err := run(buildDir, "make", strings.Fields(r.MakeOpts)...); err != nil {
			return err
		}
		cmd := exec.Command("make", "install")
		cmd.Dir = buildDir
		cmd.Env = append(os.Environ(), "DESTDIR="+r.DestDir)
		cmd.Stdout, cmd.Stderr = log, log
		return cmd.Run()

	case BuildAutoconf:
		if err := run(root, "./configure", strings.Fields(r.ConfigureOpts)...); err != nil {
			return err
		}
		if err := run(root, "make", strings.Fields(r.MakeOpts)...); err != nil {
			return err
		}
		cmd := exec.Command("make", "install")
		cmd.Dir = root
		cmd.Env = append(os.Environ(), "DESTDIR="+r.DestDir)
		cmd.Stdout, cmd.Stderr = log, log
		return cmd.Run()

	case BuildMake:
		if err := run(root, "make", strings.Fields(r.MakeOpts)...); err != nil {
			return err
		}
		cmd := exec.Command("make", "install")
		cmd.Dir = root
		cmd.Env = append(os.Environ(), "DESTDIR="+r.DestDir)
		cmd.Stdout, cmd.Stderr = log, log
		return cmd.Run()

	case BuildRecipeProvided:
		return opts.RecipeBuild(root, r.DestDir, r)

	default:
		return fmt.Errorf("no known build system detected in %s", root)
	}
}
