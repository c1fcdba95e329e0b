package oracle

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/stackvm/code"
	"github.com/wippyai/stackvm/errors"
	"github.com/wippyai/stackvm/interp"
)

// DefaultTimeout bounds a single Run when the context has no deadline. The
// reference engine has no step budget.
const DefaultTimeout = 2 * time.Second

// Runner executes programs under wazero. A Runner is safe for concurrent use.
type Runner struct {
	runtime wazero.Runtime
	timeout time.Duration
	seq     atomic.Uint64
}

// Option configures a Runner.
type Option func(*Runner)

// WithTimeout sets the per-run timeout used when the context has no deadline.
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) {
		r.timeout = d
	}
}

// New creates a Runner backed by the wazero interpreter with the 2.0 core
// feature set, which includes multi-value blocks and SIMD.
func New(ctx context.Context, opts ...Option) *Runner {
	cfg := wazero.NewRuntimeConfigInterpreter().
		WithCoreFeatures(api.CoreFeaturesV2).
		WithCloseOnContextDone(true)
	r := &Runner{
		runtime: wazero.NewRuntimeWithConfig(ctx, cfg),
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Close releases the underlying runtime.
func (r *Runner) Close(ctx context.Context) error {
	return r.runtime.Close(ctx)
}

// Run encodes prog, instantiates it and calls its exported function. Traps
// map to the kinds the interpreter raises for the same condition; modules
// the engine refuses to compile are reported as invalid_data.
func (r *Runner) Run(ctx context.Context, prog *code.Program) ([]interp.Value, error) {
	bin, err := Encode(prog)
	if err != nil {
		return nil, err
	}

	if _, ok := ctx.Deadline(); !ok && r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	compiled, err := r.runtime.CompileModule(ctx, bin)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseRuntime, errors.KindInvalidData, err, "compile")
	}
	defer compiled.Close(ctx)

	name := fmt.Sprintf("program-%d", r.seq.Add(1))
	mod, err := r.runtime.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName(name))
	if err != nil {
		return nil, errors.Wrap(errors.PhaseRuntime, errors.KindInvalidData, err, "instantiate")
	}
	defer mod.Close(ctx)

	fn := mod.ExportedFunction(ExportName)
	if fn == nil {
		return nil, errors.InvalidData(errors.PhaseRuntime, "missing export "+ExportName)
	}

	Logger().Debug("call", zap.String("module", name), zap.Int("bytes", len(bin)))
	raw, err := fn.Call(ctx)
	if err != nil {
		return nil, trap(err)
	}
	return results(prog.Signature, raw)
}

// Run executes prog on a throwaway Runner.
func Run(ctx context.Context, prog *code.Program) ([]interp.Value, error) {
	r := New(ctx)
	defer r.Close(ctx)
	return r.Run(ctx, prog)
}

func trap(err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "integer divide by zero"):
		return errors.Wrap(errors.PhaseRuntime, errors.KindDivideByZero, err, "integer remainder by zero")
	case strings.Contains(msg, "unreachable"):
		return errors.Wrap(errors.PhaseRuntime, errors.KindUnreachable, err, "unreachable executed")
	case strings.Contains(msg, "context deadline exceeded"), strings.Contains(msg, "module closed"):
		return errors.Wrap(errors.PhaseRuntime, errors.KindBudgetExceeded, err, "timed out")
	}
	return errors.Wrap(errors.PhaseRuntime, errors.KindInvalidInput, err, "call")
}

// results converts the raw call results back into typed values. A v128
// result occupies two slots; only the low half is kept.
func results(sig []code.ValueType, raw []uint64) ([]interp.Value, error) {
	out := make([]interp.Value, 0, len(sig))
	i := 0
	for _, t := range sig {
		if i >= len(raw) {
			return nil, errors.InvalidData(errors.PhaseRuntime,
				fmt.Sprintf("engine returned %d slots for %s", len(raw), code.FormatTypes(sig)))
		}
		bits := raw[i]
		i++
		switch t {
		case code.I32, code.F32:
			bits = uint64(uint32(bits))
		case code.V128:
			i++
		}
		out = append(out, interp.Value{Type: t, Bits: bits})
	}
	return out, nil
}
