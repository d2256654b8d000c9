package hierarchy

import (
	"errors"
)

var (
	ErrVenueNotFound   = errors.New("venue not found")
	ErrVenueConflict   = errors.New("venue already exists")
	ErrVersionConflict = errors.New("hierarchy modified concurrently")
	ErrSaveInFlight    = errors.New("save already in flight")
)
