package harness

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/courseswap/internal/engine"
	"github.com/roach88/courseswap/internal/ir"
	"github.com/roach88/courseswap/internal/store"
	"github.com/roach88/courseswap/internal/testutil"
)

// Harness is the test execution engine.
// It runs scenarios with a manual clock and sequential op ids.
type Harness struct {
	store  *store.Store
	engine *engine.Engine
	clock  *testutil.ManualClock
	labels labels
	seq    int64
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
//  1. Create fresh in-memory database
//  2. Execute setup steps (each must succeed)
//  3. Execute flow steps with expect validation
//  4. Evaluate assertions against the trace and store
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	start := testutil.Epoch
	if scenario.Start != "" {
		if start, err = time.Parse(time.RFC3339, scenario.Start); err != nil {
			return nil, fmt.Errorf("start: %w", err)
		}
	}
	clock := testutil.NewManualClock(start)

	h := &Harness{
		store: st,
		engine: engine.New(st,
			engine.WithClock(clock),
			engine.WithOpIDGenerator(testutil.NewSequentialOpIDs(scenario.Name)),
			engine.WithRefundOnAccept(scenario.RefundOnAccept),
			// Suppress logs in tests
			engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		),
		clock:  clock,
		labels: make(labels),
	}

	ctx := context.Background()
	result := NewResult()

	for i, step := range scenario.Setup {
		outcome, err := h.execute(ctx, step, result)
		if err != nil {
			return nil, fmt.Errorf("setup[%d]: %w", i, err)
		}
		if outcome != CaseOK {
			return nil, fmt.Errorf("setup[%d]: %s failed with %s", i, step.Op, outcome)
		}
	}

	for i, step := range scenario.Flow {
		outcome, err := h.execute(ctx, step, result)
		if err != nil {
			return nil, fmt.Errorf("flow[%d]: %w", i, err)
		}
		if step.Expect == nil {
			continue
		}
		if outcome != step.Expect.Case {
			result.AddError(fmt.Sprintf("flow[%d] %s: expected case %s, got %s", i, step.Op, step.Expect.Case, outcome))
			continue
		}
		if step.Expect.Result != nil {
			actual := result.Trace[len(result.Trace)-1].Result
			if err := h.matchValue(actual, step.Expect.Result); err != nil {
				result.AddError(fmt.Sprintf("flow[%d] %s: result %v", i, step.Op, err))
			}
		}
	}

	actx := &AssertionContext{Ctx: ctx, Store: st, labels: h.labels}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}

	return result, nil
}

// execute runs one step and appends its invocation and completion to the
// trace. The returned outcome is CaseOK or an error kind; err is set only
// for malformed steps and storage failures.
func (h *Harness) execute(ctx context.Context, step Step, result *Result) (string, error) {
	if step.At != "" {
		at, err := time.Parse(time.RFC3339, step.At)
		if err != nil {
			return "", fmt.Errorf("at: %w", err)
		}
		h.clock.Set(at)
	}

	var caller ir.AccountID
	if step.As != "" {
		var err error
		if caller, err = h.labels.account(step.As); err != nil {
			return "", fmt.Errorf("as: %w", err)
		}
	}
	cmd, err := buildCommand(step.Op, step.Args, h.labels)
	if err != nil {
		return "", err
	}

	result.AddInvocationTrace(step.Op, step.As, step.Args, h.next())

	res, err := h.engine.Dispatch(ctx, engine.Call{Caller: caller}, cmd)
	if err != nil {
		kind := ir.KindOf(err)
		if kind == "" {
			return "", err
		}
		result.AddCompletionTrace(string(kind), nil, h.next())
		return string(kind), nil
	}

	labelled, err := h.label(res)
	if err != nil {
		return "", fmt.Errorf("%s: %w", step.Op, err)
	}
	result.AddCompletionTrace(CaseOK, labelled, h.next())
	return CaseOK, nil
}

func (h *Harness) next() int64 {
	h.seq++
	return h.seq
}

// label converts a command result or stored record into plain JSON values
// with ids replaced by their scenario labels. Nulls are dropped.
func (h *Harness) label(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return h.labelJSON(data)
}

func (h *Harness) labelJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return h.labelValue(raw), nil
}

func (h *Harness) labelValue(v any) any {
	switch x := v.(type) {
	case string:
		return h.labels.name(x)
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n
		}
		return x.String()
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = h.labelValue(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			if e == nil {
				continue
			}
			out[k] = h.labelValue(e)
		}
		return out
	}
	return v
}

// matchValue compares an actual labelled value against a scenario
// expectation. Maps match as subsets.
func (h *Harness) matchValue(actual, expected any) error {
	want, err := h.label(expected)
	if err != nil {
		return fmt.Errorf("normalize expected: %w", err)
	}
	if !subsetEqual(actual, want) {
		return fmt.Errorf("mismatch:\n  expected: %v\n  actual:   %v", want, actual)
	}
	return nil
}
