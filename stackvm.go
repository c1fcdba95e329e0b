package stackvm

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/wippyai/stackvm/code"
	"github.com/wippyai/stackvm/errors"
	"github.com/wippyai/stackvm/interp"
	"github.com/wippyai/stackvm/machine"
	"github.com/wippyai/stackvm/metrics"
	"github.com/wippyai/stackvm/oracle"
	"github.com/wippyai/stackvm/validate"
)

type options struct {
	metrics  *metrics.Metrics
	observer func(interp.StepResult)
	runner   *oracle.Runner
	budget   int
	trap     bool
}

// Option configures Validate, Execute, NewStepper and Compare.
type Option func(*options)

// WithBudget sets the execution step budget.
func WithBudget(n int) Option {
	return func(o *options) {
		o.budget = n
	}
}

// WithMetrics records every run in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithObserver registers a callback invoked after every executed step.
func WithObserver(fn func(interp.StepResult)) Option {
	return func(o *options) {
		o.observer = fn
	}
}

// WithUnreachableTrap makes execution fail at unreachable instead of
// abandoning the rest of the region. Compare always sets it.
func WithUnreachableTrap() Option {
	return func(o *options) {
		o.trap = true
	}
}

// WithRunner makes Compare reuse r instead of creating a runtime per call.
func WithRunner(r *oracle.Runner) Option {
	return func(o *options) {
		o.runner = r
	}
}

func buildOptions(opts []Option) *options {
	o := &options{budget: interp.DefaultBudget}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *options) interp() []interp.Option {
	opts := []interp.Option{interp.WithBudget(o.budget)}
	if o.observer != nil {
		opts = append(opts, interp.WithObserver(o.observer))
	}
	if o.trap {
		opts = append(opts, interp.WithUnreachableTrap())
	}
	return opts
}

// SetLogger installs l in every package that logs. Stack and frame
// transitions are logged at debug level.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	machine.SetLogger(l.Named("machine"))
	validate.SetLogger(l.Named("validate"))
	interp.SetLogger(l.Named("interp"))
	oracle.SetLogger(l.Named("oracle"))
}

// Validate type-checks prog against its signature.
func Validate(prog *code.Program, opts ...Option) error {
	o := buildOptions(opts)
	start := time.Now()
	err := validate.Program(prog)
	o.metrics.Observe(metrics.ModeValidate, 0, time.Since(start), err)
	return err
}

// Execute runs prog and returns the final operand stack. prog is not
// validated first.
func Execute(prog *code.Program, opts ...Option) ([]interp.Value, error) {
	o := buildOptions(opts)
	start := time.Now()
	it, err := interp.New(prog, o.interp()...)
	if err != nil {
		o.metrics.Observe(metrics.ModeExecute, 0, time.Since(start), err)
		return nil, err
	}
	stack, err := it.Run()
	o.metrics.Observe(metrics.ModeExecute, it.Steps(), time.Since(start), err)
	return stack, err
}

// Stepper runs a program one instruction at a time.
type Stepper = interp.Interpreter

// NewStepper prepares prog for step mode.
func NewStepper(prog *code.Program, opts ...Option) (*Stepper, error) {
	return interp.New(prog, buildOptions(opts).interp()...)
}

// Comparison holds the outcome of one program on both engines.
type Comparison struct {
	Interp    []interp.Value
	InterpErr error
	Engine    []interp.Value
	EngineErr error
}

// Agree reports whether both engines returned the same values, or failed
// with the same error kind.
func (c *Comparison) Agree() bool {
	if c.InterpErr != nil || c.EngineErr != nil {
		ik, iok := errors.KindOf(c.InterpErr)
		ek, eok := errors.KindOf(c.EngineErr)
		return iok && eok && ik == ek
	}
	if len(c.Interp) != len(c.Engine) {
		return false
	}
	for i := range c.Interp {
		if c.Interp[i] != c.Engine[i] {
			return false
		}
	}
	return true
}

// Compare validates prog, then runs it on the interpreter and on the
// reference engine. unreachable traps on both sides. A validation failure is
// returned as the error.
func Compare(ctx context.Context, prog *code.Program, opts ...Option) (*Comparison, error) {
	if err := Validate(prog, opts...); err != nil {
		return nil, err
	}
	o := buildOptions(opts)

	c := &Comparison{}
	c.Interp, c.InterpErr = Execute(prog, append(opts[:len(opts):len(opts)], WithUnreachableTrap())...)

	r := o.runner
	if r == nil {
		r = oracle.New(ctx)
		defer r.Close(ctx)
	}
	start := time.Now()
	c.Engine, c.EngineErr = r.Run(ctx, prog)
	o.metrics.Observe(metrics.ModeOracle, 0, time.Since(start), c.EngineErr)
	return c, nil
}
