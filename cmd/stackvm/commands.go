package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wippyai/stackvm"
	"github.com/wippyai/stackvm/code"
	"github.com/wippyai/stackvm/errors"
	"github.com/wippyai/stackvm/interp"
	"github.com/wippyai/stackvm/oracle"
)

func newValidateCommand(c *cli) *cobra.Command {
	var opts programOptions

	cmd := &cobra.Command{
		Use:   "validate FILE...",
		Short: "Type-check programs against their result signature",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			failed := 0
			for _, path := range args {
				err := validateFile(c, &opts, path)
				if err != nil {
					failed++
					fmt.Fprintf(c.out, "%s: %v\n", path, err)
					continue
				}
				fmt.Fprintf(c.out, "%s: ok\n", path)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d programs failed validation", failed, len(args))
			}
			return nil
		},
	}
	opts.addFlags(cmd.Flags())
	return cmd
}

func validateFile(c *cli, opts *programOptions, path string) error {
	prog, err := opts.load(path)
	if err != nil {
		return err
	}
	return stackvm.Validate(prog, stackvm.WithMetrics(c.metrics))
}

type runOptions struct {
	programOptions
	budget     int
	noValidate bool
	trace      bool
	trap       bool
}

func newRunCommand(c *cli) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run FILE",
		Short: "Validate and execute a program, printing the final stack",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProgram(c, &opts, args[0])
		},
	}
	flags := cmd.Flags()
	opts.addFlags(flags)
	flags.IntVar(&opts.budget, "budget", 0, "Step budget (default from config)")
	flags.BoolVar(&opts.noValidate, "no-validate", false, "Execute without validating first")
	flags.BoolVar(&opts.trace, "trace", false, "Print every step")
	flags.BoolVar(&opts.trap, "trap-unreachable", false, "Fail at unreachable instead of skipping to the end of the region")
	return cmd
}

func runProgram(c *cli, opts *runOptions, path string) error {
	prog, err := opts.load(path)
	if err != nil {
		return err
	}
	if !opts.noValidate {
		if err := stackvm.Validate(prog, stackvm.WithMetrics(c.metrics)); err != nil {
			return err
		}
	}

	budget := opts.budget
	if budget <= 0 {
		budget = c.budget()
	}
	vmOpts := []stackvm.Option{stackvm.WithBudget(budget), stackvm.WithMetrics(c.metrics)}
	if opts.trap {
		vmOpts = append(vmOpts, stackvm.WithUnreachableTrap())
	}
	if opts.trace {
		vmOpts = append(vmOpts, stackvm.WithObserver(func(r interp.StepResult) {
			printStep(c.out, prog.Instructions, r)
		}))
	}

	stack, err := stackvm.Execute(prog, vmOpts...)
	if err != nil {
		return err
	}
	c.log.Debug("finished", zap.String("file", path), zap.Int("values", len(stack)))
	printStack(c.out, stack)
	return nil
}

func printStack(w io.Writer, stack []interp.Value) {
	for _, v := range stack {
		fmt.Fprintln(w, v)
	}
}

func printStep(w io.Writer, instrs []code.Instruction, r interp.StepResult) {
	if r.Executed < 0 {
		return
	}
	mark := " "
	if r.Skipped {
		mark = "~"
	}
	fmt.Fprintf(w, "%4d %s %-28s [%s]\n", r.Executed, mark, instrs[r.Executed], formatValues(r.Stack))
}

func formatValues(vs []interp.Value) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = v.String()
	}
	return strings.Join(parts, " ")
}

type emitOptions struct {
	programOptions
	output string
}

func newEmitCommand(c *cli) *cobra.Command {
	var opts emitOptions

	cmd := &cobra.Command{
		Use:   "emit FILE",
		Short: "Encode a program as a core WebAssembly module",
		Long: "Encode a program as a core WebAssembly module exporting a single function\n" +
			"named \"" + oracle.ExportName + "\" that takes no parameters and returns the program's signature.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prog, err := opts.load(args[0])
			if err != nil {
				return err
			}
			bin, err := oracle.Encode(prog)
			if err != nil {
				return err
			}
			if opts.output == "" || opts.output == "-" {
				_, err = c.out.Write(bin)
				return err
			}
			if err := os.WriteFile(opts.output, bin, 0o644); err != nil {
				return errors.Wrap(errors.PhaseEncode, errors.KindInvalidInput, err, "write "+opts.output)
			}
			c.log.Info("wrote module", zap.String("path", opts.output), zap.Int("bytes", len(bin)))
			return nil
		},
	}
	opts.addFlags(cmd.Flags())
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Output file (default: stdout)")
	return cmd
}

func newCompareCommand(c *cli) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "compare FILE...",
		Short: "Run programs on the interpreter and on wazero and compare the results",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			runner := oracle.New(ctx)
			defer runner.Close(ctx)

			budget := opts.budget
			if budget <= 0 {
				budget = c.budget()
			}
			differ := 0
			for _, path := range args {
				prog, err := opts.load(path)
				if err != nil {
					return err
				}
				cmp, err := stackvm.Compare(ctx, prog,
					stackvm.WithBudget(budget),
					stackvm.WithMetrics(c.metrics),
					stackvm.WithRunner(runner))
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				verdict := "agree"
				if !cmp.Agree() {
					verdict = "DIFFER"
					differ++
				}
				fmt.Fprintf(c.out, "%s: %s\n  interp: %s\n  wazero: %s\n",
					path, verdict, outcome(cmp.Interp, cmp.InterpErr), outcome(cmp.Engine, cmp.EngineErr))
			}
			if differ > 0 {
				return fmt.Errorf("%d of %d programs differ", differ, len(args))
			}
			return nil
		},
	}
	opts.addFlags(cmd.Flags())
	cmd.Flags().IntVar(&opts.budget, "budget", 0, "Interpreter step budget (default from config)")
	return cmd
}

func outcome(stack []interp.Value, err error) string {
	if err != nil {
		kind, _ := errors.KindOf(err)
		return "error " + string(kind)
	}
	return "[" + formatValues(stack) + "]"
}
