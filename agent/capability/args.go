package capability

import (
	"fmt"

	contractx "github.com/finsight-labs/finsight/agent/contract"
)

func stringArg(args map[string]any, key string) (string, error) {
	raw, ok := args[key]
	if !ok {
		return "", fmt.Errorf("%w: missing argument %q", contractx.ErrValidation, key)
	}
	v, ok := raw.(string)
	if !ok || v == "" {
		return "", fmt.Errorf("%w: argument %q must be a non-empty string", contractx.ErrValidation, key)
	}
	return v, nil
}

func floatArg(args map[string]any, key string, fallback float64) (float64, error) {
	raw, ok := args[key]
	if !ok {
		return fallback, nil
	}
	switch v := raw.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("%w: argument %q must be a number", contractx.ErrValidation, key)
	}
}

func intArg(args map[string]any, key string, fallback int) (int, error) {
	v, err := floatArg(args, key, float64(fallback))
	if err != nil {
		return 0, err
	}
	return int(v), nil
}

func customerArg(args map[string]any) (string, error) {
	return stringArg(args, "customer_id")
}
