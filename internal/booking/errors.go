package booking

import (
	"errors"
	"fmt"
)

var ErrNoSeatsRequested = errors.New("at least one seat must be requested")

// InsufficientCapacityError reports a request for more seats than the
// subcategory has free. Available is the count at the time of the check so
// the caller can offer it back to the user.
type InsufficientCapacityError struct {
	Available int
	Requested int
}

func (e InsufficientCapacityError) Error() string {
	return fmt.Sprintf("insufficient capacity: requested %d, available %d", e.Requested, e.Available)
}
