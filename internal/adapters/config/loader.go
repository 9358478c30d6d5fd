// Package config loads the garden project and module configuration files.
package config

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"slices"
	"sort"

	"go.trai.ch/garden/internal/adapters/vcs"
	"go.trai.ch/garden/internal/core/domain"
	"go.trai.ch/garden/internal/core/ports"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

var _ ports.ConfigLoader = (*Loader)(nil)

var validModuleNameRegex = regexp.MustCompile("^[a-z0-9][a-z0-9_-]*$")

// defaultModuleGlobs finds module configs anywhere below the project root.
var defaultModuleGlobs = []string{"**"}

// Loader implements ports.ConfigLoader using YAML files.
type Loader struct {
	Logger ports.Logger
	walker *vcs.Walker
}

// NewLoader creates a new Loader with the given logger.
func NewLoader(logger ports.Logger) *Loader {
	return &Loader{Logger: logger, walker: vcs.NewWalker()}
}

// DiscoverRoot walks up from cwd to the first directory containing garden.yml.
func (l *Loader) DiscoverRoot(cwd string) (string, error) {
	current, err := filepath.Abs(cwd)
	if err != nil {
		return "", zerr.With(zerr.Wrap(err, "resolve working directory"), "cwd", cwd)
	}

	for {
		if _, err := os.Stat(filepath.Join(current, domain.ProjectFileName)); err == nil {
			return current, nil
		}

		parent := filepath.Dir(current)
		if parent == current {
			return "", zerr.With(zerr.Wrap(domain.ErrConfigNotFound, "discover project root"), "cwd", cwd)
		}
		current = parent
	}
}

// Load reads the project config at or above cwd and every module config below it.
func (l *Loader) Load(cwd string) (*domain.Project, error) {
	root, err := l.DiscoverRoot(cwd)
	if err != nil {
		return nil, err
	}

	var pf ProjectFile
	if err := readAndUnmarshalYAML(filepath.Join(root, domain.ProjectFileName), &pf); err != nil {
		return nil, err
	}

	project := &domain.Project{
		Name:        pf.Name,
		Root:        root,
		Ignore:      pf.Ignore,
		Concurrency: pf.Concurrency,
		Providers:   buildProviders(pf.Providers),
	}
	if project.Name == "" {
		project.Name = filepath.Base(root)
	}

	paths, err := l.findModuleFiles(root, pf)
	if err != nil {
		return nil, err
	}

	names := make(map[string]string, len(paths))
	for _, rel := range paths {
		m, err := l.loadModule(root, rel)
		if err != nil {
			return nil, err
		}

		if first, exists := names[m.Name]; exists {
			err := zerr.With(zerr.Wrap(domain.ErrDuplicateModuleName, "load modules"), "module", m.Name)
			err = zerr.With(err, "first_occurrence", first)
			return nil, zerr.With(err, "duplicate_at", rel)
		}
		names[m.Name] = rel
		project.Modules = append(project.Modules, m)
	}

	sort.Slice(project.Modules, func(i, j int) bool { return project.Modules[i].Name < project.Modules[j].Name })

	if err := validate(project); err != nil {
		return nil, err
	}
	return project, nil
}

func (l *Loader) findModuleFiles(root string, pf ProjectFile) ([]string, error) {
	ignore, err := vcs.LoadIgnore(root, pf.Ignore...)
	if err != nil {
		return nil, err
	}

	globs := pf.Modules
	if len(globs) == 0 {
		globs = defaultModuleGlobs
	}

	var out []string
	for rel := range l.walker.WalkFiles(root, ignore) {
		if path.Base(rel) != domain.ModuleFileName {
			continue
		}
		dir := path.Dir(rel)
		if slices.ContainsFunc(globs, func(g string) bool { return vcs.MatchGlob(g, dir) }) {
			out = append(out, rel)
		} else {
			l.Logger.Debug(fmt.Sprintf("skipping %s: not matched by project modules", rel))
		}
	}
	slices.Sort(out)
	return out, nil
}

func (l *Loader) loadModule(root, rel string) (*domain.Module, error) {
	var mf ModuleFile
	configPath := filepath.Join(root, filepath.FromSlash(rel))
	if err := readAndUnmarshalYAML(configPath, &mf); err != nil {
		return nil, zerr.With(err, "file", rel)
	}

	if mf.Name == "" {
		return nil, zerr.With(zerr.Wrap(domain.ErrMissingModuleName, "load module"), "file", rel)
	}
	if !validModuleNameRegex.MatchString(mf.Name) {
		err := zerr.With(zerr.Wrap(domain.ErrInvalidModuleName, "load module"), "module", mf.Name)
		return nil, zerr.With(err, "file", rel)
	}

	m := &domain.Module{
		Name:       mf.Name,
		Path:       filepath.Dir(configPath),
		ConfigPath: configPath,
		Include:    mf.Include,
		Exclude:    mf.Exclude,
		Provider:   mf.Provider,
		Actions:    make(map[domain.Action]domain.ActionSpec),
	}

	if mf.Build != nil {
		m.BuildDependencies = canonicalizeStrings(mf.Build.Dependencies)
		addAction(m, domain.ActionBuild, &mf.Build.ActionDTO)
	}
	if mf.Deploy != nil {
		m.ServiceDependencies = canonicalizeStrings(mf.Deploy.Dependencies)
		m.Namespace = mf.Deploy.Namespace
		addAction(m, domain.ActionDeploy, &mf.Deploy.ActionDTO)
	}
	addAction(m, domain.ActionTest, mf.Test)
	addAction(m, domain.ActionRun, mf.Run)
	addAction(m, domain.ActionPublish, mf.Publish)
	addAction(m, domain.ActionStatus, mf.Status)
	addAction(m, domain.ActionDelete, mf.Delete)
	addAction(m, domain.ActionReload, mf.Reload)

	return m, nil
}

func addAction(m *domain.Module, action domain.Action, dto *ActionDTO) {
	if dto == nil || len(dto.Command) == 0 {
		return
	}
	m.Actions[action] = domain.ActionSpec{
		Command:     dto.Command,
		Environment: dto.Environment,
		Tool:        dto.Tool,
	}
}

func buildProviders(dtos map[string]*ProviderDTO) []*domain.Provider {
	out := make([]*domain.Provider, 0, len(dtos))
	for name, dto := range dtos {
		p := &domain.Provider{Name: name}
		if dto != nil {
			p.Prepare = dto.Prepare
			p.CreateNamespace = dto.CreateNamespace
			p.Environment = dto.Environment
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// validate checks cross-module references: dependencies and providers must exist and build
// dependencies must not form a cycle.
func validate(project *domain.Project) error {
	modules := make(map[string]*domain.Module, len(project.Modules))
	for _, m := range project.Modules {
		modules[m.Name] = m
	}
	providers := make(map[string]bool, len(project.Providers))
	for _, p := range project.Providers {
		providers[p.Name] = true
	}

	for _, m := range project.Modules {
		for _, dep := range slices.Concat(m.BuildDependencies, m.ServiceDependencies) {
			if _, ok := modules[dep]; !ok {
				err := zerr.With(zerr.Wrap(domain.ErrMissingDependency, "validate modules"), "module", m.Name)
				return zerr.With(err, "missing_dependency", dep)
			}
		}
		if m.Provider != "" && !providers[m.Provider] {
			err := zerr.With(zerr.Wrap(domain.ErrProviderNotFound, "validate modules"), "module", m.Name)
			return zerr.With(err, "provider", m.Provider)
		}
	}

	if err := checkCycles("build", project.Modules, modules, func(m *domain.Module) []string {
		return m.BuildDependencies
	}); err != nil {
		return err
	}
	return checkCycles("service", project.Modules, modules, func(m *domain.Module) []string {
		return m.ServiceDependencies
	})
}

// checkCycles reports the first cycle along the edges returned by deps.
func checkCycles(
	kind string, ordered []*domain.Module, modules map[string]*domain.Module, deps func(*domain.Module) []string,
) error {
	const (
		unvisited = iota
		visiting
		visited
	)
	state := make(map[string]int, len(modules))
	var stack []string

	var visit func(name string) error
	visit = func(name string) error {
		state[name] = visiting
		stack = append(stack, name)
		for _, dep := range deps(modules[name]) {
			switch state[dep] {
			case visiting:
				cycle := append(slices.Clone(stack[slices.Index(stack, dep):]), dep)
				return zerr.With(zerr.Wrap(domain.ErrCycleDetected, "validate "+kind+" dependencies"), "cycle", cycle)
			case unvisited:
				if err := visit(dep); err != nil {
					return err
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[name] = visited
		return nil
	}

	for _, m := range ordered {
		if state[m.Name] == unvisited {
			if err := visit(m.Name); err != nil {
				return err
			}
		}
	}
	return nil
}

func canonicalizeStrings(strs []string) []string {
	if len(strs) == 0 {
		return nil
	}
	sorted := slices.Clone(strs)
	slices.Sort(sorted)
	return slices.Compact(sorted)
}

// readAndUnmarshalYAML reads a YAML file and unmarshals it into the target struct.
func readAndUnmarshalYAML[T any](configPath string, target *T) error {
	configFile, err := os.ReadFile(configPath) //nolint:gosec // Path is discovered below the project root
	if err != nil {
		return zerr.With(zerr.Wrap(domain.ErrConfigReadFailed, err.Error()), "path", configPath)
	}

	if parseErr := yaml.Unmarshal(configFile, target); parseErr != nil {
		return zerr.With(zerr.Wrap(domain.ErrConfigParseFailed, parseErr.Error()), "path", configPath)
	}

	return nil
}
