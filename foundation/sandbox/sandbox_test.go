package sandbox_test

import (
	"encoding/json"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/ardanlabs/ledger/foundation/sandbox"
	"github.com/stretchr/testify/require"
)

const counter = `
owner = msg_sender
times_called = 0

def main():
    if msg_sender == owner:
        print("Thanks for calling me!")
        state("times_called", state("times_called") + 1)
        print("I have updated times_called to " + str(state("times_called")))
    else:
        print("You are not my owner. GO AWAY!")

    return state(), printed()
`

const echo = `
def main(x):
    print(x)
    return state(), printed()
`

const owner = "0xowner"

// =============================================================================

func Test_CompileCapturesState(t *testing.T) {
	c, err := sandbox.Compile(counter, nil, sandbox.Env{Sender: owner})
	require.NoError(t, err)

	require.True(t, c.HasMain())
	require.Equal(t, map[string]any{"owner": owner, "times_called": int64(0)}, c.StateVariables())
	require.Empty(t, c.Emits())

	snap := c.Snapshot()
	require.Equal(t, counter, snap.Code)

	reply := c.Reply()
	require.Empty(t, reply.Code)
	require.Equal(t, snap.StateVars, reply.StateVars)
}

func Test_CompileError(t *testing.T) {
	tests := []struct {
		name string
		code string
	}{
		{"syntax", "def main(:\n    return 1\n"},
		{"while", "def main():\n    while True:\n        pass\n"},
		{"load", "load(\"os.star\", \"system\")\n"},
		{"undefined", "x = y + 1\n"},
		{"init failure", "x = 1 // 0\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := sandbox.Compile(tt.code, nil, sandbox.Env{})
			require.ErrorIs(t, err, sandbox.ErrCompile)
		})
	}
}

func Test_InitBudget(t *testing.T) {
	code := `
def spin():
    n = 0
    for i in range(100000000):
        n += 1
    return n

total = spin()
`
	_, err := sandbox.Compile(code, nil, sandbox.Env{})
	require.ErrorIs(t, err, sandbox.ErrCompile)
}

func Test_CounterRehydration(t *testing.T) {
	c, err := sandbox.Compile(counter, nil, sandbox.Env{Sender: owner})
	require.NoError(t, err)

	state := c.StateVariables()
	for i := 1; i <= 3; i++ {
		call, err := sandbox.Compile(counter, state, sandbox.Env{Sender: owner})
		require.NoError(t, err)

		outcome, err := call.Run(time.Second)
		require.NoError(t, err)
		require.Equal(t, sandbox.Applied, outcome)

		state = call.StateVariables()
		require.Equal(t, int64(i), state["times_called"])
		require.Equal(t, owner, state["owner"])
		require.Equal(t, []string{"Thanks for calling me!", "I have updated times_called to " + string(rune('0'+i))}, call.Emits())
	}

	other, err := sandbox.Compile(counter, state, sandbox.Env{Sender: "0xsomeoneelse"})
	require.NoError(t, err)

	outcome, err := other.Run(time.Second)
	require.NoError(t, err)
	require.Equal(t, sandbox.Applied, outcome)

	require.Equal(t, int64(3), other.StateVariables()["times_called"])
	require.Equal(t, owner, other.StateVariables()["owner"])
	require.Equal(t, []string{"You are not my owner. GO AWAY!"}, other.Emits())
}

func Test_TupleRehydration(t *testing.T) {
	const pair = `
a, b = 0, 0

def main():
    state("a", a + 1)
    return state(), "a=" + str(a)
`

	c, err := sandbox.Compile(pair, nil, sandbox.Env{})
	require.NoError(t, err)

	state := c.StateVariables()
	require.Equal(t, map[string]any{"a": int64(0), "b": int64(0)}, state)

	for i := 1; i <= 3; i++ {
		call, err := sandbox.Compile(pair, state, sandbox.Env{})
		require.NoError(t, err)

		outcome, err := call.Run(time.Second)
		require.NoError(t, err)
		require.Equal(t, sandbox.Applied, outcome)

		state = call.StateVariables()
		require.Equal(t, map[string]any{"a": int64(i), "b": int64(0)}, state)
		require.Equal(t, []string{fmt.Sprintf("a=%d", i-1)}, call.Emits())
	}
}

func Test_PartialTupleRehydration(t *testing.T) {
	const code = `
(x, [y, z]) = 1, [2, 3]

def main():
    return state(), "%d %d %d" % (x, y, z)
`

	call, err := sandbox.Compile(code, map[string]any{"y": int64(20)}, sandbox.Env{})
	require.NoError(t, err)

	outcome, err := call.Run(time.Second)
	require.NoError(t, err)
	require.Equal(t, sandbox.Applied, outcome)

	require.Equal(t, map[string]any{"x": int64(1), "y": int64(20), "z": int64(3)}, call.StateVariables())
	require.Equal(t, []string{"1 20 3"}, call.Emits())
}

func Test_ContainerRehydration(t *testing.T) {
	const code = `
balances = {}
balances["owner"] = 10

def main():
    b = dict(state("balances"))
    b["owner"] = b["owner"] + 1
    state("balances", b)
    return state(), ""
`

	c, err := sandbox.Compile(code, nil, sandbox.Env{})
	require.NoError(t, err)

	state := c.StateVariables()
	for i := 11; i <= 12; i++ {
		call, err := sandbox.Compile(code, state, sandbox.Env{})
		require.NoError(t, err)

		outcome, err := call.Run(time.Second)
		require.NoError(t, err)
		require.Equal(t, sandbox.Applied, outcome)

		state = call.StateVariables()
		require.Equal(t, map[string]any{"owner": int64(i)}, state["balances"])
	}
}

func Test_RunArguments(t *testing.T) {
	c, err := sandbox.Compile(echo, nil, sandbox.Env{Sender: owner})
	require.NoError(t, err)

	outcome, err := c.Run(time.Second, "Hello World")
	require.NoError(t, err)
	require.Equal(t, sandbox.Applied, outcome)

	outcome, err = c.Run(time.Second, map[string]any{"n": json.Number("5")})
	require.NoError(t, err)
	require.Equal(t, sandbox.Applied, outcome)

	require.Equal(t, []string{"Hello World", `{"n": 5}`}, c.Emits())

	outcome, _ = c.Run(time.Second)
	require.Equal(t, sandbox.Crashed, outcome, "main requires one argument")
	require.Len(t, c.Emits(), 2)
}

func Test_DataBinding(t *testing.T) {
	code := `
last = ""

def main(*args):
    state("last", data["word"])
    emit("got " + data["word"])
    return state(), printed()
`
	c, err := sandbox.Compile(code, nil, sandbox.Env{Sender: owner, Data: map[string]any{"word": "hi"}})
	require.NoError(t, err)

	outcome, err := c.Run(time.Second)
	require.NoError(t, err)
	require.Equal(t, sandbox.Applied, outcome)

	require.Equal(t, "hi", c.StateVariables()["last"])
	require.Equal(t, []string{"got hi"}, c.Emits())
}

func Test_TimeoutLeavesStateUnchanged(t *testing.T) {
	code := `
count = 0

def main():
    n = 0
    for i in range(1000000000):
        n += 1
    state("count", n)
    return state(), "done"
`
	c, err := sandbox.Compile(code, nil, sandbox.Env{})
	require.NoError(t, err)

	start := time.Now()
	outcome, err := c.Run(sandbox.Budget(1000))
	require.Error(t, err)
	require.Equal(t, sandbox.TimedOut, outcome)
	require.Less(t, time.Since(start), 2*time.Second)

	require.Equal(t, int64(0), c.StateVariables()["count"])
	require.Empty(t, c.Emits())
}

func Test_MaxSteps(t *testing.T) {
	code := `
count = 0

def main():
    for i in range(1000000000):
        pass
    return state(), ""
`
	c, err := sandbox.Compile(code, nil, sandbox.Env{MaxSteps: 10_000})
	require.NoError(t, err)

	outcome, err := c.Run(10 * time.Second)
	require.Error(t, err)
	require.Equal(t, sandbox.Crashed, outcome)
}

func Test_Outcomes(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		budget  time.Duration
		outcome sandbox.Outcome
	}{
		{"no main", "x = 1\n", time.Second, sandbox.NoMain},
		{"no budget", echo, 0, sandbox.NoBudget},
		{"single value", "x = 1\ndef main(*args):\n    return state()\n", time.Second, sandbox.Malformed},
		{"three values", "x = 1\ndef main(*args):\n    return state(), \"a\", \"b\"\n", time.Second, sandbox.Malformed},
		{"state not dict", "x = 1\ndef main(*args):\n    return [1], \"a\"\n", time.Second, sandbox.Malformed},
		{"text not string", "x = 1\ndef main(*args):\n    return state(), 5\n", time.Second, sandbox.Malformed},
		{"list pair", "x = 1\ndef main(*args):\n    state(\"x\", 2)\n    return [state(), None]\n", time.Second, sandbox.Applied},
		{"failure", "x = 1\ndef main(*args):\n    return 1 // 0\n", time.Second, sandbox.Crashed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := sandbox.Compile(tt.code, nil, sandbox.Env{})
			require.NoError(t, err)

			before := c.StateVariables()
			outcome, _ := c.Run(tt.budget, "arg")
			require.Equal(t, tt.outcome, outcome)

			if outcome != sandbox.Applied {
				require.Equal(t, before, c.StateVariables())
				require.Empty(t, c.Emits())
			}
		})
	}
}

func Test_UntrackedNamesIgnored(t *testing.T) {
	code := `
x = 1

def main():
    return {"x": 2, "y": 3}, "a\n\nb\n"
`
	c, err := sandbox.Compile(code, nil, sandbox.Env{})
	require.NoError(t, err)

	outcome, err := c.Run(time.Second)
	require.NoError(t, err)
	require.Equal(t, sandbox.Applied, outcome)

	require.Equal(t, map[string]any{"x": int64(2)}, c.StateVariables())
	require.Equal(t, []string{"a", "b"}, c.Emits())
}

func Test_StateErrors(t *testing.T) {
	c, err := sandbox.Compile("x = 1\nitems = [1, 2]\ndef main():\n    pass\n", nil, sandbox.Env{})
	require.NoError(t, err)

	_, err = c.State("missing")
	require.ErrorIs(t, err, sandbox.ErrLookup)

	err = c.SetState("missing", 1)
	require.ErrorIs(t, err, sandbox.ErrEnvironment)

	err = c.SetState("missing", struct{}{})
	require.ErrorIs(t, err, sandbox.ErrEnvironment, "existence is checked before kind")

	err = c.SetState("x", struct{}{})
	require.ErrorIs(t, err, sandbox.ErrType)

	err = c.SetState("x", nil)
	require.ErrorIs(t, err, sandbox.ErrType)

	require.NoError(t, c.SetState("x", "now a string"))
	v, err := c.State("x")
	require.NoError(t, err)
	require.Equal(t, "now a string", v)

	items, err := c.State("items")
	require.NoError(t, err)
	items.([]any)[0] = int64(99)

	v, err = c.State("items")
	require.NoError(t, err)
	require.Equal(t, []any{int64(1), int64(2)}, v, "state is returned by copy")
}

func Test_ScriptStateErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"lookup", `state("missing")`},
		{"environment", `state("missing", 1)`},
		{"type", `state("x", (1, 2))`},
		{"type keys", `state("x", {1: 2})`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code := "x = 1\ndef main():\n    " + tt.body + "\n    return state(), \"changed\"\n"

			c, err := sandbox.Compile(code, nil, sandbox.Env{})
			require.NoError(t, err)

			outcome, err := c.Run(time.Second)
			require.Error(t, err)
			require.Equal(t, sandbox.Crashed, outcome)
			require.Equal(t, int64(1), c.StateVariables()["x"])
		})
	}
}

func Test_FrozenGlobals(t *testing.T) {
	code := `
items = []

def main():
    items.append(1)
    return state(), ""
`
	c, err := sandbox.Compile(code, nil, sandbox.Env{})
	require.NoError(t, err)

	outcome, err := c.Run(time.Second)
	require.Error(t, err)
	require.Equal(t, sandbox.Crashed, outcome)
}

func Test_Budget(t *testing.T) {
	tests := []struct {
		gas    uint64
		budget time.Duration
	}{
		{0, 0},
		{999, 0},
		{1000, 100 * time.Millisecond},
		{1999, 100 * time.Millisecond},
		{5000, 500 * time.Millisecond},
		{10000, time.Second},
		{92_233_720_368_000, 92_233_720_368 * 100 * time.Millisecond},
		{100_000_000_000_000, math.MaxInt64},
		{math.MaxUint64, math.MaxInt64},
	}

	for _, tt := range tests {
		require.Equal(t, tt.budget, sandbox.Budget(tt.gas), "gas %d", tt.gas)
	}
}

func Test_Normalize(t *testing.T) {
	v, err := sandbox.Normalize(map[string]any{
		"a": json.Number("7"),
		"b": json.Number("1.5"),
		"c": []any{1, nil, "s"},
	})
	require.NoError(t, err)
	require.Equal(t, map[string]any{"a": int64(7), "b": 1.5, "c": []any{int64(1), nil, "s"}}, v)

	_, err = sandbox.Normalize(nil)
	require.ErrorIs(t, err, sandbox.ErrType)

	_, err = sandbox.Normalize([]string{"typed"})
	require.ErrorIs(t, err, sandbox.ErrType)
}
