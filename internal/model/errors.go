package model

import (
	"errors"
	"fmt"
)

// ErrInvalidPayload is returned when an ingress UnitRecord or WeaponRecord
// is missing a mandatory field or otherwise fails basic sanity checks.
// It never originates from normalization itself — normalization is total
// (spec.md §4.1) — only from converting an external record into a Unit.
var ErrInvalidPayload = errors.New("invalid payload")

// IsInvalidPayload reports whether err is, or wraps, ErrInvalidPayload.
func IsInvalidPayload(err error) bool {
	return errors.Is(err, ErrInvalidPayload)
}

func invalidf(format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrInvalidPayload)
}
