// Command forgepkg is the CLI surface over the forge engine: a thin
// dispatcher that parses os.Args, loads configuration, and calls into
// internal/forge. It carries no pipeline logic of its own.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"regexp"
	"strings"
	"syscall"

	"forgepkg/internal/forge"
)

func main() {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigs
		fmt.Fprintln(os.Stderr, "\ninterrupted")
		os.Exit(130)
	}()

	if len(os.Args) < 2 {
		printHelp()
		os.Exit(1)
	}

	cfg := forge.LoadConfig()
	pipeline := forge.NewPipeline(cfg)

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "sync":
		err = forge.Sync(cfg)
	case "search":
		err = runSearch(cfg, args)
	case "info":
		err = runInfo(cfg, args)
	case "fetch":
		err = runFetch(cfg, args)
	case "unpack":
		err = runUnpack(cfg, args)
	case "build":
		err = runBuild(cfg, pipeline, args)
	case "install":
		err = pipeline.InstallTargets(args)
	case "install-deps":
		err = pipeline.InstallDeps(args)
	case "package":
		err = runPackage(cfg, args)
	case "remove":
		err = runRemove(cfg, pipeline, args)
	case "orphans":
		err = runOrphans(pipeline)
	case "revdep":
		err = runRevdep(pipeline)
	case "world":
		err = pipeline.World()
	case "upgrade":
		err = pipeline.Upgrade()
	case "log":
		target := ""
		if len(args) > 0 {
			target = args[0]
		}
		err = forge.RunLogViewer(cfg, target)
	case "mk-toolchain":
		err = runMkToolchain(cfg, args)
	case "help", "-h", "--help":
		printHelp()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", cmd)
		printHelp()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "forgepkg: %s: %v\n", cmd, err)
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Println(`Usage: forgepkg <command> [arguments]

Commands:
  sync                        fast-forward pull the repository
  search <regex>               search recipe names/descriptions
  info <target...>             show recipe metadata
  fetch <target...>            retrieve sources into the cache
  unpack <target...>           extract and patch sources
  build <target...>            build recipe(s), no install
  install <target...>          build and install, no dependency expansion
  install-deps <target...>     expand dependencies, build and install
  package <target...>          build and pack, no install
  remove <name[@version]>      uninstall by manifest
  orphans                      list installed packages nothing depends on
  revdep                       scan for broken dynamic-linker resolution
  world                        rebuild and reinstall every recipe
  upgrade                      install-deps the highest available version of each installed package
  log [target]                 open the build-log TUI viewer
  mk-toolchain <cat/pkg> <ver> scaffold a new recipe directory
  help                         show this text`)
}

func runSearch(cfg *forge.Config, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: forgepkg search <regex>")
	}
	re, err := regexp.Compile(args[0])
	if err != nil {
		return err
	}
	dirs, err := forge.EachRecipeDir(cfg.Repo)
	if err != nil {
		return err
	}
	for _, d := range dirs {
		r, err := forge.LoadRecipe(d, cfg)
		if err != nil {
			continue
		}
		if re.MatchString(r.Name) || re.MatchString(r.Description) {
			fmt.Printf("%s-%s  %s\n", r.Name, r.Version, r.Description)
		}
	}
	return nil
}

func runInfo(cfg *forge.Config, args []string) error {
	for _, target := range args {
		dir, err := forge.FindRecipeDir(cfg.Repo, target)
		if err != nil {
			return err
		}
		r, err := forge.LoadRecipe(dir, cfg)
		if err != nil {
			return err
		}
		fmt.Printf("%s-%s-%s\n  %s\n  license: %s\n  depends: %s\n",
			r.Name, r.Version, r.Release, r.Description, r.License, strings.Join(r.Depends, ", "))
	}
	return nil
}

func runFetch(cfg *forge.Config, args []string) error {
	for _, target := range args {
		dir, err := forge.FindRecipeDir(cfg.Repo, target)
		if err != nil {
			return err
		}
		r, err := forge.LoadRecipe(dir, cfg)
		if err != nil {
			return err
		}
		if err := forge.Fetch(cfg, r); err != nil {
			return err
		}
	}
	return nil
}

func runUnpack(cfg *forge.Config, args []string) error {
	for _, target := range args {
		dir, err := forge.FindRecipeDir(cfg.Repo, target)
		if err != nil {
			return err
		}
		r, err := forge.LoadRecipe(dir, cfg)
		if err != nil {
			return err
		}
		if err := forge.Fetch(cfg, r); err != nil {
			return err
		}
		if _, err := forge.Unpack(cfg, r); err != nil {
			return err
		}
	}
	return nil
}

func runBuild(cfg *forge.Config, p *forge.Pipeline, args []string) error {
	for _, target := range args {
		dir, err := forge.FindRecipeDir(cfg.Repo, target)
		if err != nil {
			return err
		}
		r, err := forge.LoadRecipe(dir, cfg)
		if err != nil {
			return err
		}
		if err := forge.Fetch(cfg, r); err != nil {
			return err
		}
		if err := forge.Build(cfg, p.User, p.Hooks, r, forge.BuildOptions{}); err != nil {
			return err
		}
	}
	return nil
}

func runPackage(cfg *forge.Config, args []string) error {
	for _, target := range args {
		dir, err := forge.FindRecipeDir(cfg.Repo, target)
		if err != nil {
			return err
		}
		r, err := forge.LoadRecipe(dir, cfg)
		if err != nil {
			return err
		}
		if err := forge.Fetch(cfg, r); err != nil {
			return err
		}
		if err := forge.Build(cfg, forge.NewExecutor(cfg, false), forge.NewHookRunner(cfg), r, forge.BuildOptions{}); err != nil {
			return err
		}
		path, err := forge.Pack(cfg, r)
		if err != nil {
			return err
		}
		fmt.Println(path)
	}
	return nil
}

func runRemove(cfg *forge.Config, p *forge.Pipeline, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: forgepkg remove <name[@version]>")
	}
	name, version, err := resolveInstalledSpec(cfg, args[0])
	if err != nil {
		return err
	}
	return forge.Uninstall(cfg, p.Root, name, version)
}

func resolveInstalledSpec(cfg *forge.Config, spec string) (name, version string, err error) {
	parts := strings.SplitN(spec, "@", 2)
	name = parts[0]
	if len(parts) == 2 {
		return name, parts[1], nil
	}
	versions, err := forge.InstalledVersions(cfg, name)
	if err != nil {
		return "", "", err
	}
	if len(versions) == 0 {
		return "", "", fmt.Errorf("%s is not installed", name)
	}
	return name, versions[len(versions)-1], nil
}

func runOrphans(p *forge.Pipeline) error {
	orphans, err := p.Orphans()
	if err != nil {
		return err
	}
	for _, o := range orphans {
		fmt.Println(o)
	}
	return nil
}

func runRevdep(p *forge.Pipeline) error {
	broken, err := p.Revdep()
	if err != nil {
		return err
	}
	for _, b := range broken {
		fmt.Println(b)
	}
	return nil
}

// runMkToolchain scaffolds an empty recipe directory. Recipe authoring
// itself is out of scope; this only creates the skeleton a human then
// edits.
func runMkToolchain(cfg *forge.Config, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: forgepkg mk-toolchain <cat/pkg> <version>")
	}
	catPkg, version := args[0], args[1]
	dir := filepath.Join(cfg.Repo, catPkg, version)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	recipePath := filepath.Join(dir, "recipe")
	if _, err := os.Stat(recipePath); err == nil {
		return fmt.Errorf("recipe already exists: %s", recipePath)
	}
	name := filepath.Base(catPkg)
	skeleton := fmt.Sprintf("PKG_NAME=%s\nPKG_VERSION=%s\nPKG_SOURCE_URLS=\nPKG_DEPENDS=\nPKG_DESC=\nPKG_LICENSE=\n", name, version)
	return os.WriteFile(recipePath, []byte(skeleton), 0o644)
}
