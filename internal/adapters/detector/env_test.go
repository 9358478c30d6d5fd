package detector_test

import (
	"testing"

	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"go.trai.ch/garden/internal/adapters/detector"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		name  string
		isTTY bool
		ci    string
		want  detector.OutputMode
	}{
		{name: "terminal", isTTY: true, ci: "", want: detector.ModeInteractive},
		{name: "terminal in CI", isTTY: true, ci: "true", want: detector.ModeLinear},
		{name: "terminal with CI=1", isTTY: true, ci: "1", want: detector.ModeLinear},
		{name: "terminal with CI=false", isTTY: true, ci: "false", want: detector.ModeInteractive},
		{name: "pipe", isTTY: false, ci: "", want: detector.ModeLinear},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, detector.Detect(tt.isTTY, tt.ci))
		})
	}
}

func TestDetectEnvironment_CI(t *testing.T) {
	t.Setenv("CI", "true")
	assert.Equal(t, detector.ModeLinear, detector.DetectEnvironment())
}

func TestResolveMode(t *testing.T) {
	tests := []struct {
		flag string
		want detector.OutputMode
	}{
		{flag: "", want: detector.ModeInteractive},
		{flag: "auto", want: detector.ModeInteractive},
		{flag: "linear", want: detector.ModeLinear},
		{flag: "ci", want: detector.ModeLinear},
		{flag: "json", want: detector.ModeJSON},
		{flag: "bogus", want: detector.ModeInteractive},
	}

	for _, tt := range tests {
		t.Run(tt.flag, func(t *testing.T) {
			assert.Equal(t, tt.want, detector.ResolveMode(detector.ModeInteractive, tt.flag))
		})
	}

	assert.Equal(t, detector.ModeInteractive, detector.ResolveMode(detector.ModeLinear, "interactive"))
}

func TestOutputMode_Profile(t *testing.T) {
	t.Setenv("NO_COLOR", "")
	assert.Equal(t, termenv.ANSI, detector.ModeLinear.Profile()())

	t.Setenv("NO_COLOR", "1")
	assert.Equal(t, termenv.Ascii, detector.ModeInteractive.Profile()())
}

func TestOutputMode_String(t *testing.T) {
	assert.Equal(t, "auto", detector.ModeAuto.String())
	assert.Equal(t, "interactive", detector.ModeInteractive.String())
	assert.Equal(t, "linear", detector.ModeLinear.String())
	assert.Equal(t, "json", detector.ModeJSON.String())
}
