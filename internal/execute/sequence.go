package execute

import (
	"jobshell/internal/command"
)

// Strategy names how a chain is evaluated, given the first operator the
// parser saw and the first one that differed from it.
func Strategy(first, second command.Operator) string {
	if (first == command.And && second == command.Or) || (first == command.Or && second == command.And) {
		return "mixed"
	}

	switch {
	case first == command.Sequence:
		return "sequence"
	case first == command.And:
		return "and"
	case first == command.Or:
		return "or"
	case first == command.Pipe:
		return "pipeline"
	case first == command.Background:
		return "background"
	case first.IsRedirect():
		return "redirect"
	}
	return "default"
}

// sequence runs units left to right. A unit after && runs only if the last
// status is zero and a unit after || only if it is not; a skipped unit
// leaves the status alone, which gives a && b || c its usual meaning.
func (e *Engine) sequence(units []command.Unit) error {
	connector := command.None

	for _, u := range units {
		if e.Stop != nil && e.Stop() {
			e.logger.Printf("stop before %q", u.Display())
			return nil
		}
		if skip(connector, e.status) {
			e.logger.Printf("skip %q after %s (status %d)", u.Display(), connector, e.status)
			connector = u.Connector
			continue
		}

		if err := e.run(u); err != nil {
			return err
		}
		connector = u.Connector
	}
	return nil
}

func skip(connector command.Operator, status int) bool {
	switch connector {
	case command.And:
		return status != 0
	case command.Or:
		return status == 0
	}
	return false
}
