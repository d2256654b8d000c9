package repository

import "errors"

var (
	ErrNotFound             = errors.New("not found")
	ErrConflict             = errors.New("conflict")
	ErrVersionConflict      = errors.New("hierarchy modified concurrently")
	ErrInsufficientCapacity = errors.New("insufficient capacity")
	ErrBookingNotFound      = errors.New("booking not found")
)
