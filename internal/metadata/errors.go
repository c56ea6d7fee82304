package metadata

import (
	"fmt"

	"nwbconv/internal/services"
)

// MissingKeyError reports a required descriptor key that is absent or empty.
type MissingKeyError struct {
	Key string
}

func (e *MissingKeyError) Error() string {
	return fmt.Sprintf("metadata: missing required key %q", e.Key)
}

// Is lets callers match the error against services.ErrMissingKey.
func (e *MissingKeyError) Is(target error) bool {
	return target == services.ErrMissingKey
}
