package jobs

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"
)

var ErrUnknownSignal = errors.New("unknown signal")

// ParseSignal accepts a signal as a number ("15"), a name ("TERM",
// "SIGTERM", case-insensitive), optionally with a leading dash.
func ParseSignal(spec string) (syscall.Signal, error) {
	spec = strings.TrimPrefix(spec, "-")

	if n, err := strconv.Atoi(spec); err == nil {
		sig := syscall.Signal(n)
		if n == 0 || (n > 0 && unix.SignalName(sig) != "") {
			return sig, nil
		}
		return 0, fmt.Errorf("%w: %s", ErrUnknownSignal, spec)
	}

	name := strings.ToUpper(spec)
	if !strings.HasPrefix(name, "SIG") {
		name = "SIG" + name
	}
	if sig := unix.SignalNum(name); sig != 0 {
		return sig, nil
	}
	return 0, fmt.Errorf("%w: %s", ErrUnknownSignal, spec)
}

// SignalNames lists the named signals in numeric order without the SIG
// prefix, the way kill -l prints them.
func SignalNames() []string {
	var names []string
	for i := 1; i < 65; i++ {
		if name := unix.SignalName(syscall.Signal(i)); name != "" {
			names = append(names, strings.TrimPrefix(name, "SIG"))
		}
	}
	return names
}
