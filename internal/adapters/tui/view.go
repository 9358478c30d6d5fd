package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"go.trai.ch/garden/internal/ui/style"
)

// View renders the task tree and the log pane of the selected task. Once the run finished
// only a summary line per task is left on screen.
func (m *Model) View() string {
	if m.finished {
		return m.summary()
	}
	if m.listHeight <= 0 {
		return "Planning..."
	}

	return lipgloss.JoinHorizontal(lipgloss.Top, m.taskList(), m.logPane())
}

func (m *Model) taskList() string {
	var s strings.Builder
	s.WriteString(titleStyle.Render("TASKS") + "\n\n")

	end := min(m.listOffset+m.listHeight, len(m.rows))
	for i := min(m.listOffset, end); i < end; i++ {
		s.WriteString(m.renderRow(i, m.rows[i]) + "\n")
	}
	return listStyle.Render(s.String())
}

func (m *Model) renderRow(index int, r *row) string {
	cursor := "  "
	st := statusStyle(r.task.status)
	if index == m.selected {
		cursor = selectedStyle.Render("> ")
		if r.task.status == StatusPending || r.task.status == StatusRunning {
			st = selectedStyle
		}
	}

	marker := " "
	if len(r.children) > 0 && !r.expanded {
		marker = "+"
	}

	indent := strings.Repeat("  ", r.depth)
	return cursor + indent + m.icon(r.task) + marker + st.Render(r.task.key)
}

func (m *Model) logPane() string {
	r := m.selectedRow()
	if r == nil {
		return logStyle.Render(titleStyle.Render("LOGS (waiting...)"))
	}

	mode := "manual"
	if m.follow {
		mode = "following"
	}
	header := titleStyle.Render(fmt.Sprintf("LOGS: %s (%s)", r.task.key, mode))

	return logStyle.Render(lipgloss.JoinVertical(lipgloss.Left, header, r.task.term.View()))
}

func (m *Model) summary() string {
	var s strings.Builder
	for _, key := range m.order {
		t := m.tasks[key]
		if t.status == StatusPending {
			continue
		}
		line := m.icon(t) + " " + statusStyle(t.status).Render(t.key)
		if d := t.duration(); d > 0 {
			line += faintStyle.Render(" " + d.Round(time.Millisecond).String())
		}
		if t.err != nil {
			line += taskErrorStyle.Render(": " + t.err.Error())
		}
		s.WriteString(line + "\n")
	}
	return s.String()
}

func (m *Model) icon(t *task) string {
	switch t.status {
	case StatusRunning:
		return m.spinner.View()
	case StatusDone:
		return taskDoneStyle.Render(style.Check)
	case StatusFailed:
		return taskErrorStyle.Render(style.Cross)
	default:
		return taskPendingStyle.Render("○")
	}
}

func statusStyle(s Status) lipgloss.Style {
	switch s {
	case StatusRunning:
		return taskRunningStyle
	case StatusDone:
		return taskDoneStyle
	case StatusFailed:
		return taskErrorStyle
	default:
		return taskPendingStyle
	}
}
