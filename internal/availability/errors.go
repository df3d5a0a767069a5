package availability

import (
	"fmt"

	"github.com/atlas-journeys/atlas-journeys/internal/shared"
)

// ConflictError reports which committed range blocked a request. It unwraps
// to shared.ErrConflict so transports map it to 409.
type ConflictError struct {
	UnitID   int64
	Conflict Conflict
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("unit %d: requested dates overlap %s range %s", e.UnitID, e.Conflict.Source, e.Conflict.Range)
}

func (e *ConflictError) Unwrap() error {
	return shared.ErrConflict
}
