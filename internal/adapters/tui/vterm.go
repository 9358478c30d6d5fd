package tui

import (
	"bytes"
	"sync"

	"github.com/vito/midterm"
)

// Vterm keeps the output of one task in a virtual terminal and a scroll window over it.
type Vterm struct {
	mu      sync.Mutex
	vt      *midterm.Terminal
	offset  int
	height  int
	viewBuf bytes.Buffer
}

// NewVterm creates an empty Vterm one line high.
func NewVterm() *Vterm {
	return &Vterm{
		vt:     midterm.NewAutoResizingTerminal(),
		height: 1,
	}
}

// Write feeds task output to the terminal. A window at the bottom stays at the bottom.
func (v *Vterm) Write(p []byte) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	follow := v.offset >= v.maxOffset()
	n, err := v.vt.Write(p)
	if follow {
		v.offset = v.maxOffset()
	}
	return n, err
}

// Resize sets the visible window. Values below one are raised to one.
func (v *Vterm) Resize(width, height int) {
	v.mu.Lock()
	defer v.mu.Unlock()

	follow := v.offset >= v.maxOffset()
	v.height = max(height, 1)
	v.vt.ResizeX(max(width, 1))
	if follow {
		v.offset = v.maxOffset()
	}
	v.clamp()
}

// Scroll moves the window by delta lines.
func (v *Vterm) Scroll(delta int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.offset += delta
	v.clamp()
}

// Page moves the window by delta windows.
func (v *Vterm) Page(delta int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.offset += delta * v.height
	v.clamp()
}

// Top moves the window to the first line.
func (v *Vterm) Top() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.offset = 0
}

// Bottom moves the window to the last line.
func (v *Vterm) Bottom() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.offset = v.maxOffset()
}

// Lines returns the number of lines written so far.
func (v *Vterm) Lines() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.vt.UsedHeight()
}

// Offset returns the first visible line.
func (v *Vterm) Offset() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.offset
}

// View renders the visible window.
func (v *Vterm) View() string {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.clamp()
	v.viewBuf.Reset()
	for i := range v.height {
		row := v.offset + i
		if row >= v.vt.UsedHeight() {
			break
		}
		if i > 0 {
			_ = v.viewBuf.WriteByte('\n')
		}
		_ = v.vt.RenderLine(&v.viewBuf, row)
	}
	return v.viewBuf.String()
}

func (v *Vterm) clamp() {
	v.offset = min(max(v.offset, 0), v.maxOffset())
}

func (v *Vterm) maxOffset() int {
	return max(v.vt.UsedHeight()-v.height, 0)
}
