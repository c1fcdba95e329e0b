package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wippyai/stackvm"
	"github.com/wippyai/stackvm/code"
	"github.com/wippyai/stackvm/errors"
	"github.com/wippyai/stackvm/interp"
)

type stepOptions struct {
	programOptions
	budget int
	steps  int
	save   string
	resume string
	noTUI  bool
}

func newStepCommand(c *cli) *cobra.Command {
	var opts stepOptions

	cmd := &cobra.Command{
		Use:   "step FILE",
		Short: "Execute a program one instruction at a time",
		Long: "Execute a program one instruction at a time. On a terminal an interactive\n" +
			"view is shown; otherwise, or with --steps, the given number of steps is run\n" +
			"and the machine state printed. Sessions can be saved and resumed.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prog, err := opts.load(args[0])
			if err != nil {
				return err
			}
			it, err := newSession(c, &opts, prog)
			if err != nil {
				return err
			}
			if opts.noTUI || opts.steps > 0 || !isTerminal(c.out) {
				return stepBatch(c, &opts, it)
			}
			return runInteractive(args[0], it, opts.save)
		},
	}
	flags := cmd.Flags()
	opts.addFlags(flags)
	flags.IntVar(&opts.budget, "budget", 0, "Step budget (default from config)")
	flags.IntVarP(&opts.steps, "steps", "n", 0, "Run this many steps without the interactive view (0: to the end)")
	flags.StringVar(&opts.save, "save", "", "Write the session snapshot to this file when stopping")
	flags.StringVar(&opts.resume, "resume", "", "Resume from a snapshot written by --save")
	flags.BoolVar(&opts.noTUI, "no-tui", false, "Never start the interactive view")
	return cmd
}

func newSession(c *cli, opts *stepOptions, prog *code.Program) (*stackvm.Stepper, error) {
	budget := opts.budget
	if budget <= 0 {
		budget = c.budget()
	}
	it, err := stackvm.NewStepper(prog, stackvm.WithBudget(budget))
	if err != nil {
		return nil, err
	}
	if opts.resume != "" {
		data, err := os.ReadFile(opts.resume)
		if err != nil {
			return nil, errors.Wrap(errors.PhaseExecute, errors.KindInvalidInput, err, "read "+opts.resume)
		}
		if err := it.RestoreSnapshot(data); err != nil {
			return nil, err
		}
		c.log.Debug("resumed", zap.String("snapshot", opts.resume), zap.Int("pc", it.PC()))
	}
	return it, nil
}

// stepBatch runs opts.steps steps (all of them when zero), printing each.
func stepBatch(c *cli, opts *stepOptions, it *interp.Interpreter) error {
	instrs := it.Program().Instructions
	for n := 0; opts.steps == 0 || n < opts.steps; n++ {
		res, err := it.Step()
		if err != nil {
			return err
		}
		if res.Done {
			break
		}
		printStep(c.out, instrs, res)
	}

	if it.Done() {
		fmt.Fprintln(c.out, "done")
		printStack(c.out, it.Stack())
	} else {
		fmt.Fprintf(c.out, "paused at %d after %d steps\n", it.PC(), it.Steps())
		for _, f := range it.Frames() {
			fmt.Fprintf(c.out, "  %s\n", f.String())
		}
	}
	if opts.save != "" {
		return saveSnapshot(it, opts.save)
	}
	return nil
}

func saveSnapshot(it *interp.Interpreter, path string) error {
	data, err := it.Snapshot()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(errors.PhaseExecute, errors.KindInvalidInput, err, "write "+path)
	}
	return nil
}
