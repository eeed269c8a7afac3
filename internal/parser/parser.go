package parser

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"jobshell/internal/command"
	"jobshell/internal/slice"

	"github.com/anmitsu/go-shlex"
)

var ErrSyntax = errors.New("syntax error")

// Read returns the next logical line, joining physical lines while a quote
// is open or the line ends in a backslash. It returns nil at end of input.
func Read(s *bufio.Scanner, w io.Writer) []byte {
	var line []byte

	for {
		if !s.Scan() {
			// A pending line is handed back as-is so the tokenizer reports it.
			return line
		}

		var quote byte
		line = append(line, s.Bytes()...)
		if line == nil {
			line = []byte{}
		}

		for i := 0; i < len(line); i++ {
			switch {
			case line[i] == '\\' && (quote == 0 || (quote == '"' && i+1 < len(line) && (line[i+1] == '"' || line[i+1] == '\\'))):
				i++
			case (line[i] == '\'' || line[i] == '"') && quote == 0:
				quote = line[i]
			case line[i] == quote:
				quote = 0
			}
		}

		if len(line) >= 1 && line[len(line)-1] == '\\' {
			if quote != '\'' {
				line = slice.Remove(line, len(line)-1, len(line))
			}
			fmt.Fprint(w, "> ")
			continue
		}

		if quote != 0 {
			line = append(line, '\n')
			fmt.Fprint(w, "> ")
			continue
		}

		return line
	}
}

// Tokenize splits a line into words, honouring shell quoting.
func Tokenize(line string) ([]string, error) {
	words, err := shlex.Split(line, true)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSyntax, err)
	}
	return words, nil
}

// Parse builds a command chain from tokens. first is the first operator seen
// and second the first operator that differs from it, which is how callers
// tell a mixed && / || chain apart from a uniform one.
func Parse(tokens []string) (chain command.Chain, first, second command.Operator, err error) {
	var cur *command.Command

	for _, tok := range tokens {
		op, ok := command.ParseOperator(tok)
		if !ok {
			if cur == nil {
				cur = &command.Command{}
			}
			cur.Words = append(cur.Words, tok)
			continue
		}

		if cur == nil {
			return nil, command.None, command.None, fmt.Errorf("%w: missing command before '%s'", ErrSyntax, op)
		}

		cur.Op = op
		chain = append(chain, cur)
		cur = nil

		switch {
		case first == command.None:
			first = op
		case second == command.None && op != first:
			second = op
		}
	}

	if cur != nil {
		chain = append(chain, cur)
		return chain, first, second, nil
	}

	if len(chain) > 0 {
		last := chain[len(chain)-1]
		switch last.Op {
		case command.Background:
		case command.Sequence:
			last.Op = command.None
		default:
			return nil, command.None, command.None, fmt.Errorf("%w: missing command after '%s'", ErrSyntax, last.Op)
		}
	}

	return chain, first, second, nil
}

// ParseLine tokenizes and parses one line.
func ParseLine(line string) (command.Chain, command.Operator, command.Operator, error) {
	tokens, err := Tokenize(line)
	if err != nil {
		return nil, command.None, command.None, err
	}
	return Parse(tokens)
}
