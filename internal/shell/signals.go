package shell

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// handleSignals catches the job-control signals so they never stop or
// kill the shell itself. Caught signals are reset to their defaults in
// every child the shell starts. An interrupt at the prompt abandons the
// current input and prints a fresh prompt.
func (s *Shell) handleSignals() (stop func()) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTSTP, syscall.SIGTERM, syscall.SIGHUP)

	done := make(chan struct{})
	go func() {
		for {
			select {
			case sig := <-sigs:
				s.logger.Printf("shell received %v", sig)
				if sig == syscall.SIGINT && s.Interactive() {
					fmt.Fprint(s.stdout, "\n"+s.Prompt())
				}
			case <-done:
				return
			}
		}
	}()

	return func() {
		signal.Stop(sigs)
		close(done)
	}
}
