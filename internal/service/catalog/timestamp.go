package catalog

import (
	"fmt"
	"strings"
	"time"

	"diskcatalog/internal/domain"

	"github.com/go-openapi/strfmt"
)

// ParseTimestamp parses an ISO-8601 date-time, normalized to UTC and
// truncated to microseconds so every backend stores the same instant
func ParseTimestamp(field, value string) (time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return time.Time{}, fmt.Errorf("%w: %s is required", domain.ErrMalformedTimestamp, field)
	}

	dt, err := strfmt.ParseDateTime(value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s %q is not an ISO-8601 date-time", domain.ErrMalformedTimestamp, field, value)
	}

	return normalize(time.Time(dt)), nil
}

// parseOptionalTimestamp parses value when present
func parseOptionalTimestamp(field string, value *string) (*time.Time, error) {
	if value == nil {
		return nil, nil
	}
	t, err := ParseTimestamp(field, *value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func normalize(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}
