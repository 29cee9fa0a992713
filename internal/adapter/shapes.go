package adapter

import (
	"context"
	"errors"
	"fmt"

	"github.com/HsiangNianian/aieda-bridge/internal/capability"
)

// callShape is one historical argument layout of the host's component
// creation call.
type callShape struct {
	name string
	args func(c componentInput) []any
}

// createShapes is tried in order; the first call that returns a primitive
// wins. No shape is retried.
var createShapes = []callShape{
	{
		name: "positional",
		args: func(c componentInput) []any {
			return []any{c.deviceRef(), c.X, c.Y, nilIfEmpty(c.SubPart), c.Rotation, c.Mirror, true, true}
		},
	},
	{
		name: "positional-short",
		args: func(c componentInput) []any {
			return []any{c.deviceRef(), c.X, c.Y}
		},
	},
	{
		name: "options-object",
		args: func(c componentInput) []any {
			return []any{map[string]any{
				"component": c.deviceRef(),
				"x":         c.X,
				"y":         c.Y,
				"rotation":  c.Rotation,
				"mirror":    c.Mirror,
			}}
		},
	},
	{
		name: "device-uuid",
		args: func(c componentInput) []any {
			return []any{c.DeviceUUID, c.X, c.Y}
		},
	},
}

func createWithShapes(ctx context.Context, method capability.Method, c componentInput) (any, error) {
	attempts := make([]string, 0, len(createShapes))
	for _, shape := range createShapes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out, err := method(ctx, shape.args(c)...)
		if err == nil && out == nil {
			err = errors.New("host returned no primitive")
		}
		if err == nil {
			return out, nil
		}
		attempts = append(attempts, fmt.Sprintf("%s: %v", shape.name, err))
	}
	return nil, &CreateComponentError{Attempts: attempts}
}

func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
