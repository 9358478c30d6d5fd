// Package detector selects the output mode from the terminal and CI environment.
package detector

import (
	"os"

	"github.com/muesli/termenv"
	"go.trai.ch/garden/internal/adapters/settings"
	"go.trai.ch/garden/internal/ui/output"
	"golang.org/x/term"
)

// OutputMode represents the rendering mode for task output.
type OutputMode int

const (
	// ModeAuto defers to environment detection.
	ModeAuto OutputMode = iota
	// ModeInteractive renders a live task tree with the terminal's own color profile.
	ModeInteractive
	// ModeLinear renders prefixed lines with basic ANSI colors for CI logs.
	ModeLinear
	// ModeJSON renders one JSON event per line.
	ModeJSON
)

// String returns the settings name of the mode.
func (m OutputMode) String() string {
	switch m {
	case ModeInteractive:
		return settings.OutputInteractive
	case ModeLinear:
		return settings.OutputLinear
	case ModeJSON:
		return settings.OutputJSON
	default:
		return settings.OutputAuto
	}
}

// Profile returns the color profile selector for the mode.
func (m OutputMode) Profile() func() termenv.Profile {
	if m == ModeInteractive {
		return output.ColorProfile
	}
	return output.ColorProfileANSI
}

// DetectEnvironment returns ModeLinear when stdout is not a terminal or CI is set,
// and ModeInteractive otherwise.
func DetectEnvironment() OutputMode {
	return detect(term.IsTerminal(int(os.Stdout.Fd())), os.Getenv("CI"))
}

func detect(isTTY bool, ci string) OutputMode {
	isCI := ci == "true" || ci == "1"
	if !isTTY || isCI {
		return ModeLinear
	}
	return ModeInteractive
}

// ResolveMode applies the user's setting or flag to the detected mode.
// Unknown values fall back to detection.
func ResolveMode(autoDetected OutputMode, userFlag string) OutputMode {
	switch userFlag {
	case settings.OutputInteractive:
		return ModeInteractive
	case settings.OutputLinear, "ci":
		return ModeLinear
	case settings.OutputJSON:
		return ModeJSON
	default:
		return autoDetected
	}
}
