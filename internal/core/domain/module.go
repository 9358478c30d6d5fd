package domain

import (
	"slices"
	"time"
)

// Action names a module lifecycle step that can carry a command.
type Action string

const (
	ActionBuild   Action = "build"
	ActionTest    Action = "test"
	ActionDeploy  Action = "deploy"
	ActionRun     Action = "run"
	ActionPublish Action = "publish"
	ActionStatus  Action = "status"
	ActionDelete  Action = "delete"
	ActionReload  Action = "reload"
)

// ActionSpec describes how a module performs one action.
type ActionSpec struct {
	Command     []string
	Environment map[string]string
	// Tool names an external tool that must not run concurrently with itself.
	Tool string
}

// Module is a named unit of source with a root path.
type Module struct {
	Name string
	// Path is the absolute module root.
	Path string
	// ConfigPath is the absolute path of the module config file.
	ConfigPath string

	Include []string
	Exclude []string

	BuildDependencies   []string
	ServiceDependencies []string

	// Namespace is the environment namespace deploys of this module need provisioned.
	Namespace string
	// Provider is the name of the provider the module deploys through.
	Provider string

	Actions map[Action]ActionSpec
}

// Action returns the spec for a, if the module declares one.
func (m *Module) Action(a Action) (ActionSpec, bool) {
	spec, ok := m.Actions[a]
	if !ok || len(spec.Command) == 0 {
		return ActionSpec{}, false
	}
	return spec, true
}

// DependsOnService reports whether m declares name as a service dependency.
func (m *Module) DependsOnService(name string) bool {
	return slices.Contains(m.ServiceDependencies, name)
}

// FileHash is a module file relative to the module root with its content hash.
type FileHash struct {
	Path string `json:"path"`
	Hash string `json:"hash"`
}

// ModuleVersion is the content version of a module combined with its dependencies.
type ModuleVersion struct {
	VersionString      string            `json:"version"`
	DirtyTimestamp     *time.Time        `json:"dirty_timestamp,omitempty"`
	Files              []FileHash        `json:"files"`
	DependencyVersions map[string]string `json:"dependency_versions"`
}

// Stable reports whether the version may be cached beyond a single build.
func (v *ModuleVersion) Stable() bool {
	return v.DirtyTimestamp == nil
}

// BuildInfo records that a task key completed for a module version.
type BuildInfo struct {
	Key       TaskKey   `json:"key,omitzero"`
	Version   string    `json:"version,omitzero"`
	Timestamp time.Time `json:"timestamp,omitzero"`
}

// Project is a loaded project config with every module below its root.
type Project struct {
	Name string
	// Root is the absolute directory containing the project config.
	Root string
	// Ignore holds extra ignore globs declared in the project config.
	Ignore      []string
	Concurrency int
	// Modules is sorted by name.
	Modules []*Module
	// Providers is sorted by name.
	Providers []*Provider
}

// Provider is a deploy target environment modules deploy through.
type Provider struct {
	Name string
	// Prepare runs once per process before the first deploy through the provider.
	Prepare []string
	// CreateNamespace runs once per process per namespace, with GARDEN_NAMESPACE set.
	CreateNamespace []string
	Environment     map[string]string
}

// Command is a single external command invocation.
type Command struct {
	// Name identifies the command in logs, usually the task key.
	Name string
	Dir  string
	Args []string
	// Env holds "KEY=VALUE" pairs added to the inherited environment.
	Env []string
}
