// Package tui renders task progress as an interactive task tree with a log pane.
package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	listWidthRatio = 0.3
	logPaneMargin  = 4
)

// Status is the state of a task in the tree.
type Status int

const (
	// StatusPending marks a planned task that has not started.
	StatusPending Status = iota
	// StatusRunning marks a task in progress.
	StatusRunning
	// StatusDone marks a task that completed.
	StatusDone
	// StatusFailed marks a task that failed.
	StatusFailed
)

type task struct {
	key     string
	status  Status
	term    *Vterm
	started time.Time
	ended   time.Time
	err     error
}

func (t *task) duration() time.Duration {
	if t.started.IsZero() || t.ended.IsZero() {
		return 0
	}
	return t.ended.Sub(t.started)
}

type (
	planMsg struct {
		keys    []string
		deps    map[string][]string
		targets []string
	}
	startMsg struct {
		spanID string
		name   string
		at     time.Time
	}
	logMsg struct {
		spanID string
		data   []byte
	}
	completeMsg struct {
		spanID string
		at     time.Time
		err    error
	}
	finishMsg struct{}
)

// Model is the Bubble Tea model of a run.
type Model struct {
	order []string
	tasks map[string]*task
	spans map[string]*task
	roots []*row
	rows  []*row

	selected   int
	listOffset int
	listHeight int
	logWidth   int
	logHeight  int
	follow     bool
	finished   bool

	spinner spinner.Model
	cancel  func()
}

// NewModel creates an empty model. cancel is called when the user quits.
func NewModel(cancel func()) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = taskRunningStyle

	if cancel == nil {
		cancel = func() {}
	}

	return &Model{
		tasks:   make(map[string]*task),
		spans:   make(map[string]*task),
		follow:  true,
		spinner: s,
		cancel:  cancel,
	}
}

// Init starts the spinner.
func (m *Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m, m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case planMsg:
		m.plan(msg)
	case startMsg:
		m.start(msg)
	case logMsg:
		if t, ok := m.spans[msg.spanID]; ok {
			_, _ = t.term.Write(msg.data)
		}
	case completeMsg:
		if t, ok := m.spans[msg.spanID]; ok {
			t.ended = msg.at
			t.err = msg.err
			t.status = StatusDone
			if msg.err != nil {
				t.status = StatusFailed
			}
		}
	case finishMsg:
		m.finished = true
		return m, tea.Quit
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "q", "ctrl+c":
		m.cancel()
		m.finished = true
		return tea.Quit
	case "k", "up":
		m.move(-1)
	case "j", "down":
		m.move(1)
	case "enter", " ":
		if r := m.selectedRow(); r != nil && len(r.children) > 0 {
			r.expanded = !r.expanded
			m.rows = flatten(m.roots)
			m.selected = min(m.selected, len(m.rows)-1)
			m.ensureVisible()
		}
	case "esc":
		m.follow = true
		m.selectRunning()
	case "pgup":
		m.withTerm(func(v *Vterm) { v.Page(-1) })
	case "pgdown":
		m.withTerm(func(v *Vterm) { v.Page(1) })
	case "home":
		m.withTerm((*Vterm).Top)
	case "end":
		m.withTerm((*Vterm).Bottom)
	}
	return nil
}

func (m *Model) move(delta int) {
	next := m.selected + delta
	if next < 0 || next >= len(m.rows) {
		return
	}
	m.selected = next
	m.follow = false
	m.ensureVisible()
}

func (m *Model) resize(width, height int) {
	listWidth := int(float64(width) * listWidthRatio)
	m.logWidth = width - listWidth - logPaneMargin
	m.logHeight = height - lipgloss.Height(titleStyle.Render("LOGS"))
	m.listHeight = height - lipgloss.Height(titleStyle.Render("TASKS")+"\n\n")
	m.ensureVisible()

	for _, t := range m.tasks {
		t.term.Resize(m.logWidth, m.logHeight)
	}
}

func (m *Model) plan(msg planMsg) {
	m.order = msg.keys
	m.tasks = make(map[string]*task, len(msg.keys))
	m.spans = make(map[string]*task)
	for _, key := range msg.keys {
		term := NewVterm()
		if m.logWidth > 0 && m.logHeight > 0 {
			term.Resize(m.logWidth, m.logHeight)
		}
		m.tasks[key] = &task{key: key, term: term}
	}

	m.roots = buildTree(msg.targets, msg.deps, m.tasks)
	m.rows = flatten(m.roots)
	m.selected = 0
	m.listOffset = 0
}

func (m *Model) start(msg startMsg) {
	t, ok := m.tasks[msg.name]
	if !ok {
		return
	}
	t.status = StatusRunning
	t.started = msg.at
	m.spans[msg.spanID] = t

	if m.follow {
		m.selectTask(t)
	}
}

func (m *Model) selectRunning() {
	for _, r := range m.rows {
		if r.task.status == StatusRunning {
			m.selectTask(r.task)
			return
		}
	}
}

func (m *Model) selectTask(t *task) {
	for i, r := range m.rows {
		if r.task == t {
			m.selected = i
			m.ensureVisible()
			t.term.Bottom()
			return
		}
	}
}

func (m *Model) ensureVisible() {
	if m.listHeight <= 0 {
		return
	}
	if m.selected < m.listOffset {
		m.listOffset = m.selected
	} else if m.selected >= m.listOffset+m.listHeight {
		m.listOffset = m.selected - m.listHeight + 1
	}
}

func (m *Model) selectedRow() *row {
	if m.selected >= 0 && m.selected < len(m.rows) {
		return m.rows[m.selected]
	}
	return nil
}

func (m *Model) withTerm(fn func(*Vterm)) {
	if r := m.selectedRow(); r != nil {
		m.follow = false
		fn(r.task.term)
	}
}
