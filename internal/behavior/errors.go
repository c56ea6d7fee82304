package behavior

import (
	"fmt"

	"nwbconv/internal/services"
)

// DataShapeError reports source arrays whose lengths do not support the
// requested derivation.
type DataShapeError struct {
	Field  string
	Detail string
}

func (e *DataShapeError) Error() string {
	return fmt.Sprintf("behavior: %s: %s", e.Field, e.Detail)
}

// Is lets callers match the error against services.ErrDataShape.
func (e *DataShapeError) Is(target error) bool {
	return target == services.ErrDataShape
}

func shapeError(field, format string, args ...any) error {
	return &DataShapeError{Field: field, Detail: fmt.Sprintf(format, args...)}
}
