package registry

import "context"

// CallFunc is the executable body of a Func tool.
type CallFunc func(ctx context.Context, args, kwargs map[string]any) (map[string]any, error)

// Func adapts a plain function to the Tool interface.
type Func struct {
	name string
	desc string
	fn   CallFunc
}

// NewFunc creates a function-backed tool.
func NewFunc(name, description string, fn CallFunc) *Func {
	return &Func{name: name, desc: description, fn: fn}
}

// Name returns the tool name.
func (f *Func) Name() string { return f.name }

// Description returns the human-readable tool description.
func (f *Func) Description() string { return f.desc }

// Call invokes the wrapped function.
func (f *Func) Call(ctx context.Context, args, kwargs map[string]any) (map[string]any, error) {
	return f.fn(ctx, args, kwargs)
}
