package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/deixis/overseer"
	"github.com/deixis/overseer/internal/config"
	"github.com/deixis/overseer/internal/report"
	"github.com/deixis/overseer/internal/runner"
	"github.com/deixis/overseer/internal/workflow"
)

// requestFlags are the flags shared by commands that build a run request.
type requestFlags struct {
	profile            string
	policy             string
	ignore             []string
	fail               []string
	succeed            []string
	timeout            time.Duration
	interruptOnFailure bool
	interruptOnSuccess bool
	dir                string
	env                []string
}

func (f *requestFlags) bind(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVarP(&f.profile, "profile", "p", "", "run a configured profile; positional args are appended to its command")
	fl.StringVar(&f.policy, "policy", "", "evaluation policy: exit-code or keyword (default keyword when any keyword is set)")
	fl.StringSliceVar(&f.ignore, "ignore", nil, "keyword: ignore lines containing this text")
	fl.StringSliceVar(&f.fail, "fail", nil, "keyword: fail the run on lines containing this text")
	fl.StringSliceVar(&f.succeed, "succeed", nil, "keyword: pass the run on lines containing this text")
	fl.DurationVarP(&f.timeout, "timeout", "t", 0, "interrupt the run after this long (default from config)")
	fl.BoolVar(&f.interruptOnFailure, "interrupt-on-failure", false, "stop the process as soon as a failure is seen")
	fl.BoolVar(&f.interruptOnSuccess, "interrupt-on-success", false, "stop reading a stream once it reports success")
	fl.StringVarP(&f.dir, "dir", "C", "", "working directory, relative to the repository root")
	fl.StringArrayVarP(&f.env, "env", "e", nil, "extra environment variable KEY=VALUE (repeatable)")
}

// build returns the request described by the flags and positional args.
func (f *requestFlags) build(cmd *cobra.Command, eng *workflow.Engine, args []string) (*runner.Request, error) {
	var opts []runner.RequestOption
	fl := cmd.Flags()
	if fl.Changed("timeout") {
		opts = append(opts, runner.WithInterruptAfter(f.timeout))
	}
	if fl.Changed("interrupt-on-failure") {
		opts = append(opts, runner.WithInterruptOnFailure(f.interruptOnFailure))
	}
	if fl.Changed("interrupt-on-success") {
		opts = append(opts, runner.WithInterruptOnSuccess(f.interruptOnSuccess))
	}
	if f.dir != "" {
		opts = append(opts, runner.WithDir(f.dir))
	}
	if len(f.env) > 0 {
		opts = append(opts, runner.WithEnv(f.env...))
	}

	if f.profile != "" {
		if f.policy != "" || len(f.ignore)+len(f.fail)+len(f.succeed) > 0 {
			return nil, fmt.Errorf("policy flags cannot be combined with --profile")
		}
		return eng.Request(f.profile, args, opts...)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("a program to run or --profile is required")
	}

	policy, err := config.PolicyConfig{
		Kind:    f.policy,
		Ignore:  f.ignore,
		Fail:    f.fail,
		Succeed: f.succeed,
	}.Build()
	if err != nil {
		return nil, err
	}
	if !fl.Changed("timeout") {
		opts = append([]runner.RequestOption{runner.WithInterruptAfter(eng.Config.Timeout())}, opts...)
	}
	return runner.NewRequest(args, policy, opts...)
}

func newRunCmd(a *app) *cobra.Command {
	var (
		rf    requestFlags
		quiet bool
	)
	cmd := &cobra.Command{
		Use:   "run [flags] [--] program [args...]",
		Short: "Run a program and report its verdict",
		Example: `  overseer run -- go test ./...
  overseer run --fail "panic:" --interrupt-on-failure -- ./integration.sh
  overseer run -p unit -- -run TestParse`,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := a.engine()
			if err != nil {
				return err
			}
			defer a.shutdown()

			req, err := rf.build(cmd, eng, args)
			if err != nil {
				return err
			}
			rec, err := eng.Run(cmd.Context(), rf.profile, req)
			if err != nil {
				a.logger.Warn("run not recorded", "err", err)
			}

			if a.jsonOut {
				if err := writeJSON(cmd.OutOrStdout(), rec); err != nil {
					return err
				}
			} else {
				printRecord(cmd, rec, quiet)
			}
			if code := exitCodeFor(rec); code != 0 {
				return &exitError{Code: code}
			}
			return nil
		},
	}
	rf.bind(cmd)
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "do not replay the captured output")
	return cmd
}

// printRecord replays the captured streams and prints the verdict line on
// stderr.
func printRecord(cmd *cobra.Command, rec *report.RunRecord, quiet bool) {
	if !quiet {
		fmt.Fprint(cmd.OutOrStdout(), rec.InfoStream)
		fmt.Fprint(cmd.ErrOrStderr(), rec.ErrorStream)
	}
	fmt.Fprintln(cmd.ErrOrStderr(), verdictLine(rec))
}

func newCheckCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check [profiles...]",
		Short: "Run check profiles in order, stopping at the first failure",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := a.engine()
			if err != nil {
				return err
			}
			defer a.shutdown()

			res, err := eng.Check(cmd.Context(), args)
			if err != nil {
				return fmt.Errorf("check: %w", err)
			}
			if a.jsonOut {
				if err := writeJSON(cmd.OutOrStdout(), res); err != nil {
					return err
				}
			} else {
				fmt.Fprint(cmd.OutOrStdout(), formatCheck(res))
			}
			if !res.Passed() {
				return &exitError{Code: 1}
			}
			return nil
		},
	}
}

func newRepeatCmd(a *app) *cobra.Command {
	var (
		rf       requestFlags
		count    int
		parallel int
	)
	cmd := &cobra.Command{
		Use:   "repeat [flags] [--] program [args...]",
		Short: "Run a program several times and check the outcomes match",
		Example: `  overseer repeat -n 5 -j 5 -- go test -count=1 ./...
  overseer repeat -n 3 -p integration`,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := a.engine()
			if err != nil {
				return err
			}
			defer a.shutdown()

			req, err := rf.build(cmd, eng, args)
			if err != nil {
				return err
			}
			res, err := eng.Repeat(cmd.Context(), rf.profile, req, count, parallel)
			if err != nil {
				return err
			}

			if a.jsonOut {
				if err := writeJSON(cmd.OutOrStdout(), res); err != nil {
					return err
				}
			} else {
				for i, rec := range res.Records {
					fmt.Fprintf(cmd.ErrOrStderr(), "#%d %s\n", i+1, verdictLine(rec))
				}
				if res.Idempotent {
					fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render(fmt.Sprintf("all %d runs matched", len(res.Records))))
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "%s run #%d differs from run #1\n\n%s",
						errorStyle.Render("diverged:"), res.DivergedAt+1, res.Diff)
				}
			}
			if !res.Idempotent {
				return &exitError{Code: 1}
			}
			return nil
		},
	}
	rf.bind(cmd)
	cmd.Flags().IntVarP(&count, "count", "n", 2, "number of runs")
	cmd.Flags().IntVarP(&parallel, "parallel", "j", 1, "maximum concurrent runs")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), overseer.Version)
		},
	}
}
