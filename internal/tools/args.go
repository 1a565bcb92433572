// Package tools implements the built-in capabilities exposed through the
// registry: the document pipeline tools, semantic search, and a few small
// utilities used for wiring checks.
package tools

import "fmt"

// argValue resolves a parameter from kwargs first, then args.
func argValue(args, kwargs map[string]any, key string) (any, bool) {
	if v, ok := kwargs[key]; ok {
		return v, true
	}
	v, ok := args[key]
	return v, ok
}

// stringArg extracts a required non-empty string parameter.
func stringArg(args, kwargs map[string]any, key string) (string, error) {
	v, ok := argValue(args, kwargs, key)
	if !ok {
		return "", fmt.Errorf("'%s' is required", key)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("'%s' must be a non-empty string", key)
	}
	return s, nil
}

// numberArg extracts a required numeric parameter. JSON numbers arrive as
// float64; integers are accepted for direct (non-wire) callers.
func numberArg(args, kwargs map[string]any, key string) (float64, error) {
	v, ok := argValue(args, kwargs, key)
	if !ok {
		return 0, fmt.Errorf("'%s' is required", key)
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("'%s' must be a number", key)
	}
}

// intArg extracts an optional integer parameter, returning fallback when absent.
func intArg(args, kwargs map[string]any, key string, fallback int) (int, error) {
	v, ok := argValue(args, kwargs, key)
	if !ok {
		return fallback, nil
	}
	n, err := numberArg(args, kwargs, key)
	if err != nil {
		return 0, err
	}
	if n != float64(int(n)) {
		return 0, fmt.Errorf("'%s' must be an integer, got %v", key, v)
	}
	return int(n), nil
}

// mapArg extracts an optional object parameter.
func mapArg(args, kwargs map[string]any, key string) (map[string]any, error) {
	v, ok := argValue(args, kwargs, key)
	if !ok || v == nil {
		return nil, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("'%s' must be an object", key)
	}
	return m, nil
}

// stringsArg extracts an optional string-array parameter.
func stringsArg(args, kwargs map[string]any, key string) ([]string, error) {
	v, ok := argValue(args, kwargs, key)
	if !ok || v == nil {
		return nil, nil
	}
	switch list := v.(type) {
	case []string:
		return list, nil
	case []any:
		out := make([]string, len(list))
		for i, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("'%s' must be an array of strings", key)
			}
			out[i] = s
		}
		return out, nil
	default:
		return nil, fmt.Errorf("'%s' must be an array of strings", key)
	}
}

func success(fields map[string]any) map[string]any {
	result := map[string]any{"status": "success"}
	for k, v := range fields {
		result[k] = v
	}
	return result
}

func failure(detail string) map[string]any {
	return map[string]any{"status": "failed", "error": detail}
}
