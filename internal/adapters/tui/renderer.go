package tui

import (
	"bytes"
	"context"
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.trai.ch/garden/internal/core/ports"
)

var _ ports.Renderer = (*Renderer)(nil)

// Renderer drives a Model in a Bubble Tea program.
type Renderer struct {
	program *tea.Program
	model   *Model
	errCh   chan error
}

// NewRenderer creates a renderer for model.
func NewRenderer(model *Model, opts ...tea.ProgramOption) *Renderer {
	return &Renderer{
		program: tea.NewProgram(model, opts...),
		model:   model,
		errCh:   make(chan error, 1),
	}
}

// Start runs the program in the background.
func (r *Renderer) Start(_ context.Context) error {
	go func() {
		_, err := r.program.Run()
		r.errCh <- err
	}()
	return nil
}

// Stop renders the summary and ends the program.
func (r *Renderer) Stop() error {
	r.program.Send(finishMsg{})
	return nil
}

// Wait blocks until the program has terminated. A program ended by its context is not an error.
func (r *Renderer) Wait() error {
	err := <-r.errCh
	if errors.Is(err, tea.ErrProgramKilled) {
		return nil
	}
	return err
}

// OnPlanEmit lays out the task tree.
func (r *Renderer) OnPlanEmit(keys []string, deps map[string][]string, targets []string) {
	r.program.Send(planMsg{keys: keys, deps: deps, targets: targets})
}

// OnTaskStart marks a task as running.
func (r *Renderer) OnTaskStart(spanID, _, name string, startTime time.Time) {
	r.program.Send(startMsg{spanID: spanID, name: name, at: startTime})
}

// OnTaskLog appends output to the log of a task.
func (r *Renderer) OnTaskLog(spanID string, data []byte) {
	r.program.Send(logMsg{spanID: spanID, data: bytes.Clone(data)})
}

// OnTaskComplete marks a task as done or failed.
func (r *Renderer) OnTaskComplete(spanID string, endTime time.Time, err error) {
	r.program.Send(completeMsg{spanID: spanID, at: endTime, err: err})
}
