package tools

import (
	"context"

	"github.com/knowd-io/knowd/internal/registry"
)

// NewEcho returns a tool that reflects its input back, used to verify the
// dispatch loop end to end.
func NewEcho() registry.Tool {
	return registry.NewFunc("echo", "Echo the given text back to the caller.",
		func(_ context.Context, args, kwargs map[string]any) (map[string]any, error) {
			text, err := stringArg(args, kwargs, "text")
			if err != nil {
				return nil, err
			}
			return success(map[string]any{"echoed_text": text}), nil
		})
}

// NewAddNumbers returns a tool that adds two numbers.
func NewAddNumbers() registry.Tool {
	return registry.NewFunc("add_numbers", "Add two numbers and return the sum.",
		func(_ context.Context, args, kwargs map[string]any) (map[string]any, error) {
			a, err := numberArg(args, kwargs, "a")
			if err != nil {
				return nil, err
			}
			b, err := numberArg(args, kwargs, "b")
			if err != nil {
				return nil, err
			}
			return success(map[string]any{"result": a + b}), nil
		})
}

// ToolLister enumerates registered tools.
type ToolLister interface {
	Names() []string
	Lookup(name string) (registry.Tool, bool)
}

// NewListTools returns a tool that lists every registered tool with its
// description, sorted by name.
func NewListTools(reg ToolLister) registry.Tool {
	return registry.NewFunc("list_tools", "List all registered tools.",
		func(_ context.Context, _, _ map[string]any) (map[string]any, error) {
			names := reg.Names()
			listed := make([]map[string]any, 0, len(names))
			for _, name := range names {
				t, ok := reg.Lookup(name)
				if !ok {
					continue
				}
				listed = append(listed, map[string]any{
					"name":        t.Name(),
					"description": t.Description(),
				})
			}
			return success(map[string]any{"tools": listed, "count": len(listed)}), nil
		})
}
