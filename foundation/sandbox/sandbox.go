// Package sandbox compiles and runs contract source code in a restricted
// interpreter. Contracts are written in Starlark, a small Python dialect with
// no access to the host filesystem, network, clock or process. The only
// capabilities a contract receives are the ones bound by this package.
//
// A contract's top level bindings of kind int, float, bool, string, list or
// dict are tracked as state variables. Callable bindings remain entry points
// and the one named main is invoked by Run.
package sandbox

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// Set of error variables for contract compilation and state access.
var (
	ErrCompile     = errors.New("contract failed to compile")
	ErrLookup      = errors.New("lookup error")
	ErrType        = errors.New("type error")
	ErrEnvironment = errors.New("environment error")
)

// DefaultInitSteps bounds the work top level code may perform while a
// contract is being compiled.
const DefaultInitSteps = 1_000_000

// Names bound by the sandbox. These are never tracked as state variables.
const (
	nameState     = "state"
	nameEmit      = "emit"
	namePrinted   = "printed"
	nameSender    = "sender"
	nameMsgSender = "msg_sender"
	nameData      = "data"
	nameMain      = "main"
	nameDiscard   = "_seeded"
)

// Thread local keys.
const (
	localState  = "sandbox.state"
	localOutput = "sandbox.output"
)

// =============================================================================

// Env represents the read only environment a contract is compiled against.
type Env struct {
	Sender   string // Public key of the account invoking the contract.
	Data     any    // Call arguments exposed to the script as data.
	MaxSteps uint64 // Execution steps allowed to main. Zero means unlimited.
}

// Snapshot is the serializable form of a contract's state.
type Snapshot struct {
	Code      string         `json:"code,omitempty"`
	StateVars map[string]any `json:"state_vars"`
	Emits     []string       `json:"emits"`
}

// Contract represents a compiled contract. A Contract is not safe for
// concurrent use.
type Contract struct {
	code     string
	main     starlark.Callable
	state    map[string]any
	emits    []string
	maxSteps uint64
}

// Compile parses, resolves and initializes the contract code. The seed
// values, when provided, become the initial state variables and are bound as
// predeclared names. Top level assignments to a seeded name are skipped so a
// rehydrated contract keeps the seeded value.
func Compile(code string, seed map[string]any, env Env) (*Contract, error) {
	state := make(map[string]any)
	for name, v := range seed {
		if isReserved(name) {
			continue
		}

		nv, err := Normalize(v)
		if err != nil {
			return nil, fmt.Errorf("seed %q: %w", name, err)
		}
		state[name] = nv
	}

	data, err := toStarlark(env.Data)
	if err != nil {
		return nil, fmt.Errorf("data: %w", err)
	}

	predeclared := starlark.StringDict{
		nameState:     starlark.NewBuiltin(nameState, stateBuiltin),
		nameEmit:      starlark.NewBuiltin(nameEmit, emitBuiltin),
		namePrinted:   starlark.NewBuiltin(namePrinted, printedBuiltin),
		nameSender:    starlark.String(env.Sender),
		nameMsgSender: starlark.String(env.Sender),
		nameData:      data,
	}

	for name, v := range state {
		sv, err := toStarlark(v)
		if err != nil {
			return nil, fmt.Errorf("seed %q: %w", name, err)
		}
		predeclared[name] = sv
	}
	predeclared.Freeze()

	// Top level writes to seeded names that can't simply be dropped are
	// redirected here.
	predeclared[nameDiscard] = starlark.NewDict(len(state))

	// The zero value of the file options is the strict dialect: no while
	// loops, no recursion, no top level control flow and no reassignment
	// of globals.
	opts := syntax.FileOptions{}

	f, err := opts.Parse("contract.star", code, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrCompile, err)
	}

	if len(state) > 0 {
		f.Stmts = dropSeeded(f.Stmts, state)
	}

	prog, err := starlark.FileProgram(f, predeclared.Has)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrCompile, err)
	}

	var out strings.Builder
	thread := starlark.Thread{
		Name:  "init",
		Print: func(_ *starlark.Thread, msg string) {},
		Load: func(_ *starlark.Thread, module string) (starlark.StringDict, error) {
			return nil, fmt.Errorf("load of %q is not allowed", module)
		},
	}
	thread.SetLocal(localState, state)
	thread.SetLocal(localOutput, &out)
	thread.SetMaxExecutionSteps(DefaultInitSteps)

	globals, err := prog.Init(&thread, predeclared)
	if err != nil {
		return nil, fmt.Errorf("%w: init: %s", ErrCompile, err)
	}
	globals.Freeze()

	c := Contract{
		code:     code,
		state:    state,
		emits:    []string{},
		maxSteps: env.MaxSteps,
	}

	for name, v := range globals {
		if isReserved(name) && name != nameMain {
			continue
		}

		if fn, ok := v.(starlark.Callable); ok {
			if name == nameMain {
				c.main = fn
			}
			continue
		}

		if _, exists := c.state[name]; exists || !isStateKind(v) {
			continue
		}

		gv, err := fromStarlark(v)
		if err != nil {
			continue
		}
		c.state[name] = gv
	}

	return &c, nil
}

// Code returns the source code of the contract.
func (c *Contract) Code() string {
	return c.code
}

// HasMain reports whether the contract defines a main entry point.
func (c *Contract) HasMain() bool {
	return c.main != nil
}

// StateVariables returns a copy of the tracked state variables.
func (c *Contract) StateVariables() map[string]any {
	return copyState(c.state)
}

// Emits returns a copy of the emit log.
func (c *Contract) Emits() []string {
	emits := make([]string, len(c.emits))
	copy(emits, c.emits)
	return emits
}

// State returns the value of the named state variable.
func (c *Contract) State(name string) (any, error) {
	v, err := getState(c.state, name)
	if err != nil {
		return nil, err
	}
	return deepCopy(v), nil
}

// SetState replaces the value of a tracked state variable.
func (c *Contract) SetState(name string, value any) error {
	return setState(c.state, name, value)
}

// Snapshot exports the code, state variables and emits of the contract.
func (c *Contract) Snapshot() Snapshot {
	return Snapshot{
		Code:      c.code,
		StateVars: c.StateVariables(),
		Emits:     c.Emits(),
	}
}

// Reply exports the state variables and emits of the contract without the
// code. This is what is recorded for a call.
func (c *Contract) Reply() Snapshot {
	return Snapshot{
		StateVars: c.StateVariables(),
		Emits:     c.Emits(),
	}
}

// StateNames returns the sorted names of the tracked state variables.
func (c *Contract) StateNames() []string {
	names := make([]string, 0, len(c.state))
	for name := range c.state {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// =============================================================================

// getState implements the read side of the state capability.
func getState(state map[string]any, name string) (any, error) {
	v, exists := state[name]
	if !exists {
		return nil, fmt.Errorf("%w: state variable %q is not tracked", ErrLookup, name)
	}
	return v, nil
}

// setState implements the write side of the state capability. Writing to an
// undeclared name is checked before the kind of the value.
func setState(state map[string]any, name string, value any) error {
	if _, exists := state[name]; !exists {
		return fmt.Errorf("%w: state variable %q does not exist", ErrEnvironment, name)
	}

	nv, err := Normalize(value)
	if err != nil {
		return err
	}

	state[name] = nv
	return nil
}

// dropSeeded removes top level assignments to names that were seeded. When
// a seeded name is one of several targets, only that target is redirected
// to the discard dict so the remaining targets are still bound.
func dropSeeded(stmts []syntax.Stmt, state map[string]any) []syntax.Stmt {
	kept := stmts[:0:0]
	for _, stmt := range stmts {
		if assign, ok := stmt.(*syntax.AssignStmt); ok {
			if id, ok := assign.LHS.(*syntax.Ident); ok {
				if _, seeded := state[id.Name]; seeded {
					continue
				}
			}
			assign.LHS = discardSeeded(assign.LHS, state)
		}
		kept = append(kept, stmt)
	}
	return kept
}

// discardSeeded rewrites every target rooted at a seeded identifier into an
// index of the discard dict. Seeded values are frozen, so element and field
// writes to them are redirected as well.
func discardSeeded(target syntax.Expr, state map[string]any) syntax.Expr {
	switch t := target.(type) {
	case *syntax.Ident:
		if _, seeded := state[t.Name]; seeded {
			return discard(t)
		}

	case *syntax.IndexExpr:
		if id, seeded := seededRoot(t.X, state); seeded {
			return discard(id)
		}

	case *syntax.DotExpr:
		if id, seeded := seededRoot(t.X, state); seeded {
			return discard(id)
		}

	case *syntax.ParenExpr:
		t.X = discardSeeded(t.X, state)

	case *syntax.TupleExpr:
		for i := range t.List {
			t.List[i] = discardSeeded(t.List[i], state)
		}

	case *syntax.ListExpr:
		for i := range t.List {
			t.List[i] = discardSeeded(t.List[i], state)
		}
	}

	return target
}

// seededRoot returns the identifier an index or field chain starts from
// when that identifier was seeded.
func seededRoot(x syntax.Expr, state map[string]any) (*syntax.Ident, bool) {
	for {
		switch t := x.(type) {
		case *syntax.Ident:
			_, seeded := state[t.Name]
			return t, seeded
		case *syntax.IndexExpr:
			x = t.X
		case *syntax.DotExpr:
			x = t.X
		case *syntax.ParenExpr:
			x = t.X
		default:
			return nil, false
		}
	}
}

// discard returns the target _seeded["name"] for the identifier.
func discard(id *syntax.Ident) syntax.Expr {
	return &syntax.IndexExpr{
		X:      &syntax.Ident{NamePos: id.NamePos, Name: nameDiscard},
		Lbrack: id.NamePos,
		Y: &syntax.Literal{
			Token:    syntax.STRING,
			TokenPos: id.NamePos,
			Raw:      strconv.Quote(id.Name),
			Value:    id.Name,
		},
		Rbrack: id.NamePos,
	}
}

// isReserved reports whether the name is bound by the sandbox.
func isReserved(name string) bool {
	switch name {
	case nameState, nameEmit, namePrinted, nameSender, nameMsgSender, nameData, nameMain, nameDiscard:
		return true
	}
	return false
}
