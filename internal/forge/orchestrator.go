package forge

import (
	"fmt"
	"os"
	"path/filepath"
)

// Pipeline bundles the executors and hook runner the orchestrator
// threads through every single-package build+install.
type Pipeline struct {
	Cfg   *Config
	User  *Executor
	Root  *Executor
	Hooks *HookRunner
	Force bool
}

func NewPipeline(cfg *Config) *Pipeline {
	return &Pipeline{
		Cfg:   cfg,
		User:  NewExecutor(cfg, false),
		Root:  NewExecutor(cfg, true),
		Hooks: NewHookRunner(cfg),
		Force: cfg.Force,
	}
}

// BuildAndInstall runs the full pipeline for a single recipe
// directory: load, fetch, build (which itself unpacks/patches), pack,
// install.
func (p *Pipeline) BuildAndInstall(dir string) error {
	r, err := LoadRecipe(dir, p.Cfg)
	if err != nil {
		return err
	}

	infof("building %s-%s", r.Name, r.Version)
	if err := Fetch(p.Cfg, r); err != nil {
		return err
	}
	if err := Build(p.Cfg, p.User, p.Hooks, r, BuildOptions{}); err != nil {
		return err
	}
	infof("installing %s-%s", r.Name, r.Version)
	return Install(p.Cfg, p.Root, r)
}

// InstallTargets implements the bare `install` operation: for each
// target, build then install, with no dependency expansion.
func (p *Pipeline) InstallTargets(targets []string) error {
	for _, t := range targets {
		dir, err := FindRecipeDir(p.Cfg.Repo, t)
		if err != nil {
			return err
		}
		if err := p.BuildAndInstall(dir); err != nil {
			return fmt.Errorf("install %s: %w", t, err)
		}
	}
	return nil
}

// InstallDeps implements `install-deps`: expand targets via the
// dependency engine over the full transitive closure, then build-and-install
// each node in order, skipping already-installed packages unless Force.
func (p *Pipeline) InstallDeps(targets []string) error {
	closure, err := p.closure(targets)
	if err != nil {
		return err
	}
	ordered, acyclic := Order(closure)
	if !acyclic {
		warnf("dependency cycle detected among the requested packages; proceeding in best-effort order")
	}
	return p.buildOrdered(ordered)
}

// World enumerates every recipe directory under the repository, orders
// them via the dependency engine, and builds-and-installs each in
// order. Unlike install-deps, world never skips an already-installed
// package: it is an unconditional rebuild-and-reinstall of everything.
func (p *Pipeline) World() error {
	dirs, err := EachRecipeDir(p.Cfg.Repo)
	if err != nil {
		return err
	}
	nodes, err := nodesFor(p.Cfg, dirs)
	if err != nil {
		return err
	}
	ordered, acyclic := Order(nodes)
	if !acyclic {
		warnf("dependency cycle detected in the repository; proceeding in best-effort order")
	}
	return buildEach(p.Cfg, ordered, false, false, func(n DepNode) error {
		return p.BuildAndInstall(n.Dir)
	})
}

// Upgrade finds, for each installed package name, the highest available
// version under the repository; if different (or Force is set), it
// runs install-deps on that recipe.
func (p *Pipeline) Upgrade() error {
	installed, err := ListInstalled(p.Cfg)
	if err != nil {
		return err
	}

	for _, entry := range installed {
		dirs, err := EachRecipeDir(p.Cfg.Repo)
		if err != nil {
			return err
		}
		var available []string
		var dirForVersion = map[string]string{}
		for _, d := range dirs {
			r, err := LoadRecipe(d, p.Cfg)
			if err != nil || r.Name != entry.Name {
				continue
			}
			available = append(available, r.Version)
			dirForVersion[r.Version] = d
		}
		if len(available) == 0 {
			continue
		}
		best := highestVersion(available)
		if best == entry.Version && !p.Force {
			continue
		}
		infof("upgrading %s: %s -> %s", entry.Name, entry.Version, best)
		if err := p.InstallDeps([]string{dirForVersion[best]}); err != nil {
			return err
		}
	}
	return nil
}

// Orphans returns every installed name@version whose name does not
// appear in the depends list of any recipe in the repository.
func (p *Pipeline) Orphans() ([]string, error) {
	installed, err := ListInstalled(p.Cfg)
	if err != nil {
		return nil, err
	}
	dirs, err := EachRecipeDir(p.Cfg.Repo)
	if err != nil {
		return nil, err
	}

	depended := make(map[string]bool)
	for _, d := range dirs {
		r, err := LoadRecipe(d, p.Cfg)
		if err != nil {
			continue
		}
		for _, dep := range r.Depends {
			depended[dep] = true
		}
	}

	var orphans []string
	for _, e := range installed {
		if !depended[e.Name] {
			orphans = append(orphans, fmt.Sprintf("%s@%s", e.Name, e.Version))
		}
	}
	return orphans, nil
}

// closure resolves targets to recipe directories, then walks the
// transitive closure of their declared dependency names back into the
// repository via FindRecipeDir, to a fixed point, so libfoo/bar are
// discovered as nodes when only "app" was named on the command line.
func (p *Pipeline) closure(targets []string) ([]DepNode, error) {
	var dirs []string
	for _, t := range targets {
		dir, err := FindRecipeDir(p.Cfg.Repo, t)
		if err != nil {
			return nil, err
		}
		dirs = append(dirs, dir)
	}
	return p.transitiveNodes(dirs)
}

// transitiveNodes expands dirs by repeatedly resolving each discovered
// node's Depends names to recipe directories and adding any not yet
// seen, until no new directory is found. A dependency name that does
// not resolve under the repository is tolerated: the edge is simply
// unsatisfiable, per C7.
func (p *Pipeline) transitiveNodes(dirs []string) ([]DepNode, error) {
	seen := make(map[string]bool, len(dirs))
	ordered := make([]string, 0, len(dirs))
	for _, d := range dirs {
		if !seen[d] {
			seen[d] = true
			ordered = append(ordered, d)
		}
	}

	for i := 0; i < len(ordered); i++ {
		r, err := LoadRecipe(ordered[i], p.Cfg)
		if err != nil {
			warnf("skipping unreadable recipe %s: %v", ordered[i], err)
			continue
		}
		for _, dep := range r.Depends {
			depDir, err := FindRecipeDir(p.Cfg.Repo, dep)
			if err != nil {
				continue
			}
			if !seen[depDir] {
				seen[depDir] = true
				ordered = append(ordered, depDir)
			}
		}
	}

	return nodesFor(p.Cfg, ordered)
}

func nodesFor(cfg *Config, dirs []string) ([]DepNode, error) {
	nodes := make([]DepNode, 0, len(dirs))
	for _, d := range dirs {
		r, err := LoadRecipe(d, cfg)
		if err != nil {
			warnf("skipping unreadable recipe %s: %v", d, err)
			continue
		}
		nodes = append(nodes, DepNode{Dir: d, Name: r.Name, Version: r.Version, Depends: r.Depends})
	}
	return nodes, nil
}

// buildOrdered builds-and-installs each node in order, skipping
// already-installed packages unless Force is set. The first failure
// aborts the remaining queue.
func (p *Pipeline) buildOrdered(nodes []DepNode) error {
	return buildEach(p.Cfg, nodes, true, p.Force, func(n DepNode) error {
		return p.BuildAndInstall(n.Dir)
	})
}

// buildEach runs do for each node in order, skipping nodes already
// recorded as installed unless skipInstalled is false or force is set.
// The first error aborts the remaining queue, per §5's ordering
// guarantee that the caller must re-invoke to continue.
func buildEach(cfg *Config, nodes []DepNode, skipInstalled, force bool, do func(DepNode) error) error {
	for _, n := range nodes {
		if skipInstalled && !force && IsInstalled(cfg, n.Name, n.Version) {
			infof("%s-%s already installed, skipping", n.Name, n.Version)
			continue
		}
		if err := do(n); err != nil {
			return fmt.Errorf("%s-%s: %w", n.Name, n.Version, err)
		}
	}
	return nil
}

// revdepSampleLimit bounds the number of files scanned by Revdep, per
// the Open Question in DESIGN.md ("bounded scan or placeholder").
const revdepSampleLimit = 5000

var revdepScanDirs = []string{"/usr/bin", "/usr/lib", "/usr/lib64", "/bin", "/lib", "/lib64"}

// Revdep scans a bounded sample of executables and shared libraries
// under standard system paths, reporting those whose dynamic-linker
// resolution lists a missing library. When any are found, it triggers a
// World rebuild.
func (p *Pipeline) Revdep() ([]string, error) {
	var broken []string
	scanned := 0

	for _, dir := range revdepScanDirs {
		if scanned >= revdepSampleLimit {
			break
		}
		err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return nil
			}
			if scanned >= revdepSampleLimit {
				return filepath.SkipDir
			}
			if info.IsDir() || info.Mode()&0o111 == 0 {
				return nil
			}
			scanned++
			if missing, ok := lddMissing(path); ok {
				broken = append(broken, fmt.Sprintf("%s: %s", path, missing))
			}
			return nil
		})
		if err != nil && !os.IsNotExist(err) {
			return nil, err
		}
	}

	if len(broken) > 0 {
		warnf("revdep found %d broken artifact(s); triggering a world rebuild", len(broken))
		if err := p.World(); err != nil {
			return broken, err
		}
	}
	return broken, nil
}
