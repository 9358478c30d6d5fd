package config

// ProjectFile represents the structure of the garden.yml project configuration file.
type ProjectFile struct {
	Name string `yaml:"name"`
	// Modules are globs, relative to the project root, of directories holding module configs.
	Modules     []string                `yaml:"modules"`
	Ignore      []string                `yaml:"ignore"`
	Concurrency int                     `yaml:"concurrency"`
	Providers   map[string]*ProviderDTO `yaml:"providers"`
}

// ProviderDTO represents a provider definition in the project configuration.
type ProviderDTO struct {
	Prepare         []string          `yaml:"prepare"`
	CreateNamespace []string          `yaml:"createNamespace"`
	Environment     map[string]string `yaml:"environment"`
}

// ModuleFile represents the structure of a project.garden.yml module configuration file.
type ModuleFile struct {
	Name     string   `yaml:"name"`
	Include  []string `yaml:"include"`
	Exclude  []string `yaml:"exclude"`
	Provider string   `yaml:"provider"`

	Build   *BuildDTO  `yaml:"build"`
	Test    *ActionDTO `yaml:"test"`
	Deploy  *DeployDTO `yaml:"deploy"`
	Run     *ActionDTO `yaml:"run"`
	Publish *ActionDTO `yaml:"publish"`
	Status  *ActionDTO `yaml:"status"`
	Delete  *ActionDTO `yaml:"delete"`
	Reload  *ActionDTO `yaml:"reload"`
}

// ActionDTO represents the command of one module action.
type ActionDTO struct {
	Command     []string          `yaml:"command"`
	Environment map[string]string `yaml:"environment"`
	Tool        string            `yaml:"tool"`
}

// BuildDTO is the build action plus the modules that must be built first.
type BuildDTO struct {
	ActionDTO    `yaml:",inline"`
	Dependencies []string `yaml:"dependencies"`
}

// DeployDTO is the deploy action plus the services that must be deployed first.
type DeployDTO struct {
	ActionDTO    `yaml:",inline"`
	Namespace    string   `yaml:"namespace"`
	Dependencies []string `yaml:"dependencies"`
}
