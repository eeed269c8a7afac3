package main

import (
	"fmt"
	"log"
	"os"

	"jobshell/internal/config"
	"jobshell/internal/jobs"
	"jobshell/internal/shell"

	"github.com/fatih/color"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	cfgPath string
	command string
)

var rootCmd = &cobra.Command{
	Use:   "jobshell [-c command]",
	Short: "A shell with job control",
	Long: `jobshell runs pipelines, lists and redirections, and keeps track of
background and stopped jobs (jobs, fg, bg, kill, wait).`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE:         run,
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(afero.NewOsFs(), cfgPath)
	if err != nil {
		return err
	}

	logFile, err := cfg.OpenLog()
	if err != nil {
		return err
	}
	defer logFile.Close()
	logger := log.New(logFile, "jobshell: ", log.LstdFlags|log.Lmicroseconds)

	color.NoColor = !cfg.UseColor(func() bool {
		return term.IsTerminal(int(os.Stdout.Fd()))
	})

	opts := shell.Options{
		Config: cfg,
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		Logger: logger,
	}

	if cmd.Flags().Changed("command") {
		sh := shell.New(opts)
		defer sh.Close()
		return sh.RunLine(command)
	}

	tty := jobs.NewTTY(os.Stdin)
	if err := tty.Acquire(); err != nil {
		fmt.Fprintf(os.Stderr, "jobshell: no job control in this shell: %v\n", err)
		tty = nil
	}
	opts.TTY = tty

	logger.Printf("started pid=%d interactive=%t", os.Getpid(), tty.Enabled())
	return shell.New(opts).Run()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file or directory holding config.yaml")
	rootCmd.Flags().StringVarP(&command, "command", "c", "", "run one command line and exit")
}

func main() {
	// Errors reaching here are fatal: the shell could not start or could
	// no longer fork.
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
