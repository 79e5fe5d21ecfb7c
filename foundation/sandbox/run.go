package sandbox

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.starlark.net/starlark"
)

// Outcome describes what happened to a call made through Run. Only Applied
// changes the contract.
type Outcome int

// Set of outcomes for a call.
const (
	Applied Outcome = iota
	NoMain
	NoBudget
	TimedOut
	Crashed
	Malformed
)

var outcomeNames = map[Outcome]string{
	Applied:   "applied",
	NoMain:    "no_main",
	NoBudget:  "no_budget",
	TimedOut:  "timed_out",
	Crashed:   "crashed",
	Malformed: "malformed",
}

// String implements the fmt.Stringer interface.
func (o Outcome) String() string {
	if name, exists := outcomeNames[o]; exists {
		return name
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// =============================================================================

// Budget converts gas into the wall clock time a call may run. Every full
// 1000 units of gas buys 100ms and any remainder buys nothing.
// The result saturates at the longest representable duration.
func Budget(gas uint64) time.Duration {
	const unit = 100 * time.Millisecond

	q := gas / 1000
	if q > uint64(math.MaxInt64/unit) {
		return math.MaxInt64
	}

	return time.Duration(q) * unit
}

// result is what the worker hands back to Run.
type result struct {
	state map[string]any
	text  string
	err   error
	kind  Outcome
}

// Run invokes main with the specified arguments in a separate worker and
// waits at most budget for it to return a (state, text) pair. When the pair
// is returned in time, every tracked state variable present in the returned
// state is replaced and the non empty lines of the text are added to the
// emit log. In every other case the contract is left untouched. The error
// explains why a call was discarded and is only meant for diagnostics.
func (c *Contract) Run(budget time.Duration, args ...any) (Outcome, error) {
	if c.main == nil {
		return NoMain, nil
	}

	if budget <= 0 {
		return NoBudget, errors.New("gas does not buy any execution time")
	}

	// The worker owns its own copies of the state and arguments. Nothing
	// it touches is shared with the contract.
	state := copyState(c.state)
	callArgs := make([]any, len(args))
	for i, arg := range args {
		callArgs[i] = deepCopy(arg)
	}

	thread := starlark.Thread{
		Name: "main",
		Load: func(_ *starlark.Thread, module string) (starlark.StringDict, error) {
			return nil, fmt.Errorf("load of %q is not allowed", module)
		},
	}

	ch := make(chan result, 1)
	go c.worker(&thread, state, callArgs, ch)

	timer := time.NewTimer(budget)
	defer timer.Stop()

	var r result
	select {
	case r = <-ch:
	case <-timer.C:
		thread.Cancel("execution budget exhausted")
		return TimedOut, fmt.Errorf("main did not return within %v", budget)
	}

	if r.err != nil {
		return r.kind, r.err
	}

	// Apply everything or nothing.
	updates := make(map[string]any)
	for name, v := range r.state {
		if _, tracked := c.state[name]; tracked {
			updates[name] = v
		}
	}
	for name, v := range updates {
		c.state[name] = v
	}

	for _, line := range strings.Split(r.text, "\n") {
		if line != "" {
			c.emits = append(c.emits, line)
		}
	}

	return Applied, nil
}

// worker executes main on its own thread and reports a single result.
func (c *Contract) worker(thread *starlark.Thread, state map[string]any, args []any, ch chan<- result) {
	defer func() {
		if rec := recover(); rec != nil {
			ch <- result{kind: Crashed, err: fmt.Errorf("PANIC [%v]", rec)}
		}
	}()

	var out strings.Builder
	thread.Print = func(_ *starlark.Thread, msg string) {
		out.WriteString(msg)
		out.WriteString("\n")
	}
	thread.SetLocal(localState, state)
	thread.SetLocal(localOutput, &out)
	if c.maxSteps > 0 {
		thread.SetMaxExecutionSteps(c.maxSteps)
	}

	sargs := make(starlark.Tuple, len(args))
	for i, arg := range args {
		v, err := toStarlark(arg)
		if err != nil {
			ch <- result{kind: Crashed, err: fmt.Errorf("argument %d: %w", i, err)}
			return
		}
		sargs[i] = v
	}

	ret, err := starlark.Call(thread, c.main, sargs, nil)
	if err != nil {
		ch <- result{kind: Crashed, err: err}
		return
	}

	ch <- unpack(ret)
}

// unpack validates main returned exactly a (state, text) pair.
func unpack(ret starlark.Value) result {
	var pair []starlark.Value
	switch v := ret.(type) {
	case starlark.Tuple:
		pair = v
	case *starlark.List:
		for i := 0; i < v.Len(); i++ {
			pair = append(pair, v.Index(i))
		}
	default:
		return result{kind: Malformed, err: fmt.Errorf("main returned %s, want a pair", ret.Type())}
	}

	if len(pair) != 2 {
		return result{kind: Malformed, err: fmt.Errorf("main returned %d values, want 2", len(pair))}
	}

	sv, ok := pair[0].(*starlark.Dict)
	if !ok {
		return result{kind: Malformed, err: fmt.Errorf("main returned state of type %s, want dict", pair[0].Type())}
	}

	state, err := fromStarlark(sv)
	if err != nil {
		return result{kind: Malformed, err: err}
	}

	var text string
	switch t := pair[1].(type) {
	case starlark.NoneType:
	case starlark.String:
		text = string(t)
	default:
		return result{kind: Malformed, err: fmt.Errorf("main returned text of type %s, want string", pair[1].Type())}
	}

	return result{state: state.(map[string]any), text: text}
}
