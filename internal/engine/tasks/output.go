package tasks

import "go.trai.ch/garden/internal/core/domain"

// ActionOutput is returned by tasks that run a module action.
type ActionOutput struct {
	Module  string        `json:"module"`
	Action  domain.Action `json:"action"`
	Version string        `json:"version,omitzero"`
	// Executed is false when the module declares no command for the action.
	Executed bool `json:"executed"`
	// Fresh is true when the work was already recorded for this version and was skipped.
	Fresh bool `json:"fresh,omitzero"`
}

// ServiceState is the observed state of a deployed module.
type ServiceState string

const (
	ServiceReady     ServiceState = "ready"
	ServiceUnhealthy ServiceState = "unhealthy"
	ServiceUnknown   ServiceState = "unknown"
)

// StatusOutput is returned by get-status tasks.
type StatusOutput struct {
	Module string       `json:"module"`
	State  ServiceState `json:"state"`
}

// ProviderOutput is returned by resolve-provider tasks and consumed by deploys.
type ProviderOutput struct {
	Name        string            `json:"name"`
	Environment map[string]string `json:"environment,omitempty"`
}
