// Command vaultflow runs agent pipelines against a note vault: once from
// the command line, on cron schedules, or from an interactive planner.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	_ "time/tzdata"

	"github.com/spf13/cobra"

	"github.com/kbukum/vaultflow/bootstrap"
	"github.com/kbukum/vaultflow/config"
)

// Exit codes.
const (
	exitConfig   = 1
	exitPipeline = 2
)

// exitError carries the process exit code for a failed command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func withCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &exitError{code: code, err: err}
}

type globalFlags struct {
	configFile string
	envFile    string
	logLevel   string
}

func (g *globalFlags) loadConfig() (*config.AppConfig, error) {
	cfg, err := bootstrap.LoadConfig(g.configFile, g.envFile)
	if err != nil {
		return nil, withCode(exitConfig, err)
	}
	if g.logLevel != "" {
		cfg.Logging.Level = g.logLevel
	}
	return cfg, nil
}

func newRootCmd(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "vaultflow",
		Short:         "Run vault automation agents",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&g.configFile, "config", "", "vaultflow config file (default: ./vaultflow.yaml or the user config dir)")
	pf.StringVar(&g.envFile, "env-file", "", ".env file to load")
	pf.StringVar(&g.logLevel, "log-level", "", "override logging.level")

	root.AddCommand(
		newRunCmd(g),
		newValidateCmd(),
		newStepsCmd(),
		newScheduleCmd(g),
		newAssistCmd(g),
		newTokenCmd(g),
		newVersionCmd(),
	)
	return root
}

func main() {
	os.Exit(execute(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func execute(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	root := newRootCmd(stdin, stdout, stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	if err == nil {
		return 0
	}
	fmt.Fprintln(stderr, "Error:", err)
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return exitConfig
}
