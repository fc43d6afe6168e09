package validation

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	MinConcurrency = 1
	MaxConcurrency = 20
	MaxRepeat      = 1000
)

func ValidateConcurrency(workers int) error {
	if workers < MinConcurrency || workers > MaxConcurrency {
		return fmt.Errorf("concurrency must be between %d and %d, got %d", MinConcurrency, MaxConcurrency, workers)
	}
	return nil
}

func ValidateRepeat(n int) error {
	if n < 1 || n > MaxRepeat {
		return fmt.Errorf("repeat count must be between 1 and %d, got %d", MaxRepeat, n)
	}
	return nil
}

func ValidateNonEmptyString(fieldName, value string) error {
	if value == "" {
		return fmt.Errorf("%s cannot be empty", fieldName)
	}
	return nil
}

// ValidateURL accepts absolute http and https URLs.
func ValidateURL(fieldName, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s is not a valid URL: %w", fieldName, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must use http or https, got %q", fieldName, raw)
	}
	if u.Host == "" {
		return fmt.Errorf("%s must include a host, got %q", fieldName, raw)
	}
	return nil
}

func ValidateMethod(method string) error {
	switch strings.ToUpper(method) {
	case http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
		http.MethodPatch, http.MethodDelete, http.MethodOptions:
		return nil
	}
	return fmt.Errorf("invalid HTTP method: %s", method)
}

// ParseHeader splits a "Name: value" pair.
func ParseHeader(h string) (string, string, error) {
	name, value, ok := strings.Cut(h, ":")
	name = strings.TrimSpace(name)
	if !ok || name == "" || strings.ContainsAny(name, " \t") {
		return "", "", fmt.Errorf("invalid header %q (expected 'Name: value')", h)
	}
	return name, strings.TrimSpace(value), nil
}

func ValidateChoice(fieldName, value string, choices []string) error {
	for _, c := range choices {
		if strings.EqualFold(value, c) {
			return nil
		}
	}
	return fmt.Errorf("invalid %s: %s (must be one of: %s)", fieldName, value, strings.Join(choices, ", "))
}

func ValidateNonNegativeDuration(fieldName string, d time.Duration) error {
	if d < 0 {
		return fmt.Errorf("%s cannot be negative, got %s", fieldName, d)
	}
	return nil
}
