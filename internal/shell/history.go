package shell

import (
	"fmt"
	"io"

	"jobshell/internal/slice"
)

// History remembers the most recent lines entered at the prompt. Entries
// keep their original numbers after older ones are dropped.
type History struct {
	size    int
	dropped int
	lines   []string
}

func NewHistory(size int) *History {
	return &History{size: size}
}

func (h *History) Add(line string) {
	if h.size == 0 || line == "" {
		return
	}

	h.lines = append(h.lines, line)
	if over := len(h.lines) - h.size; over > 0 {
		h.lines = slice.Remove(h.lines, 0, over)
		h.dropped += over
	}
}

func (h *History) Clear() {
	h.dropped += len(h.lines)
	h.lines = nil
}

func (h *History) Print(w io.Writer) {
	for i, line := range h.lines {
		fmt.Fprintf(w, "% 5d  %s\n", h.dropped+i+1, line)
	}
}
