package command

// Operator describes how a segment relates to the segment after it.
type Operator int

const (
	None Operator = iota
	Pipe
	Background
	Or
	And
	Sequence
	RedirectOut
	RedirectAppend
	RedirectIn
)

var tokens = map[Operator]string{
	Pipe:           "|",
	Background:     "&",
	Or:             "||",
	And:            "&&",
	Sequence:       ";",
	RedirectOut:    ">",
	RedirectAppend: ">>",
	RedirectIn:     "<",
}

func (op Operator) String() string {
	if tok, ok := tokens[op]; ok {
		return tok
	}
	return ""
}

// ParseOperator returns the operator spelled by tok, or None and false.
func ParseOperator(tok string) (Operator, bool) {
	for op, t := range tokens {
		if t == tok {
			return op, true
		}
	}
	return None, false
}

func (op Operator) IsRedirect() bool {
	return op == RedirectOut || op == RedirectAppend || op == RedirectIn
}
