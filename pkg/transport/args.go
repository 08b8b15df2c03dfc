package transport

import "github.com/marcus-ai/marcus/pkg/apperr"

func stringArg(args map[string]interface{}, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", apperr.Configuration("missing required argument \"" + key + "\"")
	}
	s, ok := v.(string)
	if !ok {
		return "", apperr.Configuration("argument \"" + key + "\" must be a string")
	}
	return s, nil
}

func optionalStringArg(args map[string]interface{}, key string) string {
	if v, ok := args[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func intArg(args map[string]interface{}, key string) (int, error) {
	v, ok := args[key]
	if !ok {
		return 0, apperr.Configuration("missing required argument \"" + key + "\"")
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case float64:
		return int(n), nil
	default:
		return 0, apperr.Configuration("argument \"" + key + "\" must be a number")
	}
}

func stringSliceArg(args map[string]interface{}, key string) []string {
	v, ok := args[key]
	if !ok {
		return nil
	}
	raw, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
