// Command overseer runs external programs under supervision and reports
// a verdict for each run.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err == nil {
		return
	}

	var exitErr *exitError
	if errors.As(err, &exitErr) {
		if exitErr.Err != nil {
			fmt.Fprintln(os.Stderr, errorStyle.Render("overseer: ")+exitErr.Err.Error())
		}
		os.Exit(exitErr.Code)
	}
	fmt.Fprintln(os.Stderr, errorStyle.Render("overseer: ")+err.Error())
	os.Exit(1)
}

// exitError signals a non-zero exit code without calling os.Exit inside
// command handlers.
type exitError struct {
	Code int
	Err  error // optional message printed before exiting
}

func (e *exitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

func (e *exitError) Unwrap() error {
	return e.Err
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "overseer",
		Short: "Run external programs under supervision",
		Long: titleStyle.Render("overseer") + subtitleStyle.Render(" - supervised process execution") + `

overseer launches a program, reads its stdout and stderr line by line while
it runs, and reduces what it sees plus the exit code to a single verdict.
Keyword policies can fail or pass a run from its output, and a run can be
stopped as soon as a verdict is known or its time budget runs out.

Runs are recorded in a history database for later inspection.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error (default from config, else warn)")
	root.PersistentFlags().BoolVar(&a.jsonOut, "json", false, "output results as JSON")

	root.AddCommand(
		newRunCmd(a),
		newCheckCmd(a),
		newRepeatCmd(a),
		newInspectCmd(a),
		newHistoryCmd(a),
		newDiffCmd(a),
		newMCPCmd(a),
		newVersionCmd(),
	)
	return root
}
