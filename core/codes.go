package core

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const (
	DefaultCodePrefix = "G"
	DefaultCodeWidth  = 3
)

// CodeFormat renders sequence numbers as human-readable codes: a fixed prefix
// followed by the number zero-padded to at least Width digits.
type CodeFormat struct {
	Prefix string
	Width  int
}

func DefaultCodeFormat() CodeFormat {
	return CodeFormat{Prefix: DefaultCodePrefix, Width: DefaultCodeWidth}
}

func (f CodeFormat) normalized() CodeFormat {
	if f.Width <= 0 {
		f.Width = DefaultCodeWidth
	}
	return f
}

func (f CodeFormat) Format(n int64) string {
	f = f.normalized()
	return fmt.Sprintf("%s%0*d", f.Prefix, f.Width, n)
}

// Parse returns the numeric part of code. An empty code parses to 0.
func (f CodeFormat) Parse(code string) (int64, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return 0, nil
	}
	if !strings.HasPrefix(code, f.Prefix) {
		return 0, fmt.Errorf("core: code %q lacks prefix %q: %w", code, f.Prefix, ErrMalformedCode)
	}
	digits := strings.TrimPrefix(code, f.Prefix)
	if digits == "" {
		return 0, fmt.Errorf("core: code %q has no digits: %w", code, ErrMalformedCode)
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("core: code %q has a non-numeric suffix: %w", code, ErrMalformedCode)
		}
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("core: code %q: %w", code, ErrMalformedCode)
	}
	return n, nil
}

func (f CodeFormat) Pattern() *regexp.Regexp {
	f = f.normalized()
	return regexp.MustCompile(fmt.Sprintf(`^%s\d{%d,}$`, regexp.QuoteMeta(f.Prefix), f.Width))
}

func (f CodeFormat) Validate() error {
	if strings.TrimSpace(f.Prefix) == "" {
		return fmt.Errorf("core: code prefix is required")
	}
	if strings.ContainsAny(f.Prefix, "0123456789") {
		return fmt.Errorf("core: code prefix %q must not contain digits", f.Prefix)
	}
	if f.Width <= 0 {
		return fmt.Errorf("core: code width must be positive")
	}
	return nil
}
