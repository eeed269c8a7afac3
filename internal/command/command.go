package command

import (
	"errors"
	"fmt"
	"strings"
)

var ErrMalformed = errors.New("malformed command chain")

type Redirect struct {
	Op       Operator
	Filename string
}

// Command is one segment of a parsed command line.
type Command struct {
	Words []string
	Op    Operator
	Pid   int

	// Filename is the target of Op once the following segment has been
	// consumed as a redirection target.
	Filename  string
	Redirects []Redirect
	Trailing  []string
}

// Argv is the argument vector handed to exec: the parsed words followed by
// any words that trailed a redirection target.
func (c *Command) Argv() []string {
	argv := make([]string, 0, len(c.Words)+len(c.Trailing))
	argv = append(argv, c.Words...)
	return append(argv, c.Trailing...)
}

func (c *Command) Name() string {
	if len(c.Words) == 0 {
		return ""
	}
	return c.Words[0]
}

func (c *Command) String() string {
	return strings.Join(c.Argv(), " ")
}

// Chain is an owned, ordered command line as produced by the parser.
type Chain []*Command

// Display reconstructs the chain as the user would have typed it.
func (c Chain) Display() string {
	var b strings.Builder
	for i, cmd := range c {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(strings.Join(cmd.Words, " "))
		if cmd.Op != None {
			b.WriteByte(' ')
			b.WriteString(cmd.Op.String())
		}
	}
	return b.String()
}

// Unit is a run of segments joined by pipes, with redirection targets
// folded into the segments that name them.
type Unit struct {
	Segments  []*Command
	Connector Operator
}

func (u Unit) Background() bool {
	return u.Connector == Background
}

func (u Unit) IsPipeline() bool {
	return len(u.Segments) > 1
}

// Display renders the unit as "a | b | c".
func (u Unit) Display() string {
	parts := make([]string, len(u.Segments))
	for i, cmd := range u.Segments {
		parts[i] = cmd.String()
	}
	return strings.Join(parts, " | ")
}

// Units splits the chain at its connectors. Segments following a
// redirection operator are consumed as targets.
func (c Chain) Units() ([]Unit, error) {
	var units []Unit
	var cur Unit

	for i := 0; i < len(c); i++ {
		cmd := c[i]
		if len(cmd.Words) == 0 {
			return nil, fmt.Errorf("%w: empty segment at %d", ErrMalformed, i)
		}

		cmd.Filename, cmd.Redirects, cmd.Trailing = "", nil, nil
		op := cmd.Op
		for op.IsRedirect() {
			if i+1 >= len(c) || len(c[i+1].Words) == 0 {
				return nil, fmt.Errorf("%w: missing file name after '%s'", ErrMalformed, op)
			}
			i++
			target := c[i]
			if cmd.Filename == "" {
				cmd.Filename = target.Words[0]
			}
			cmd.Redirects = append(cmd.Redirects, Redirect{Op: op, Filename: target.Words[0]})
			cmd.Trailing = append(cmd.Trailing, target.Words[1:]...)
			op = target.Op
		}

		cur.Segments = append(cur.Segments, cmd)
		if op == Pipe {
			if i+1 >= len(c) {
				return nil, fmt.Errorf("%w: missing command after '|'", ErrMalformed)
			}
			continue
		}

		if op == None && i+1 < len(c) {
			op = Sequence
		}
		cur.Connector = op
		units = append(units, cur)
		cur = Unit{}
	}

	return units, nil
}
