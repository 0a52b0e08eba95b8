package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/sweeney/irrigation-controller/internal/logic"
)

// ParseDurationField parses an optional non-negative duration. Empty is 0.
func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: invalid duration %q: %v", logic.ErrConfigInvalid, path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%w: %s: duration must be >= 0", logic.ErrConfigInvalid, path)
	}
	return d, nil
}

// ParseDurationOrDefault is ParseDurationField with def for empty or zero.
func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(path, raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return def, nil
	}
	return d, nil
}
