package tournament

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned by stores when a player or wheel mode id is absent.
	ErrNotFound = errors.New("not found")

	ErrInvalidRoom  = errors.New("invalid room")
	ErrInvalidStage = errors.New("invalid stage")
	ErrInvalidScore = errors.New("score must be non-negative")
	ErrInvalidGame  = errors.New("game index out of range")
	ErrEmptyName    = errors.New("name is required")
	ErrNoWheelModes = errors.New("wheel mode catalog is empty")
)

// BatchError reports a multi-player write that stopped part way. Writes listed in Applied
// stand; nothing is rolled back unless the store ran the batch in a transaction.
type BatchError struct {
	Op       string
	Applied  []string
	FailedID string
	Err      error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("%s: write for player %s failed after %d applied [%s]: %v",
		e.Op, e.FailedID, len(e.Applied), strings.Join(e.Applied, ","), e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }

// IsValidation reports whether err was caused by bad caller input rather than the store.
func IsValidation(err error) bool {
	for _, target := range []error{ErrInvalidRoom, ErrInvalidStage, ErrInvalidScore, ErrInvalidGame, ErrEmptyName, ErrNoWheelModes} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
