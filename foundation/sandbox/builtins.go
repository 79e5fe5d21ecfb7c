package sandbox

import (
	"fmt"
	"strings"

	"go.starlark.net/starlark"
)

// stateBuiltin implements state(), state(name) and state(name, value).
func stateBuiltin(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if len(kwargs) > 0 {
		return nil, fmt.Errorf("%s: unexpected keyword arguments", b.Name())
	}

	state, ok := thread.Local(localState).(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%s: state is not available", b.Name())
	}

	switch len(args) {
	case 0:
		return toStarlark(state)

	case 1:
		name, ok := starlark.AsString(args[0])
		if !ok {
			return nil, fmt.Errorf("%s: %w: name must be a string, got %s", b.Name(), ErrType, args[0].Type())
		}

		v, err := getState(state, name)
		if err != nil {
			return nil, err
		}
		return toStarlark(v)

	case 2:
		name, ok := starlark.AsString(args[0])
		if !ok {
			return nil, fmt.Errorf("%s: %w: name must be a string, got %s", b.Name(), ErrType, args[0].Type())
		}

		if _, exists := state[name]; !exists {
			return nil, fmt.Errorf("%w: state variable %q does not exist", ErrEnvironment, name)
		}

		v, err := fromStarlark(args[1])
		if err != nil {
			return nil, err
		}

		if err := setState(state, name, v); err != nil {
			return nil, err
		}
		return starlark.None, nil
	}

	return nil, fmt.Errorf("%s: got %d arguments, want at most 2", b.Name(), len(args))
}

// emitBuiltin implements emit(line). The line is added to the text returned
// by printed().
func emitBuiltin(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var line string
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &line); err != nil {
		return nil, err
	}

	out, ok := thread.Local(localOutput).(*strings.Builder)
	if !ok {
		return nil, fmt.Errorf("%s: output is not available", b.Name())
	}

	out.WriteString(line)
	out.WriteString("\n")

	return starlark.None, nil
}

// printedBuiltin implements printed(), which returns everything printed or
// emitted so far by the running call.
func printedBuiltin(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0); err != nil {
		return nil, err
	}

	out, ok := thread.Local(localOutput).(*strings.Builder)
	if !ok {
		return nil, fmt.Errorf("%s: output is not available", b.Name())
	}

	return starlark.String(out.String()), nil
}
