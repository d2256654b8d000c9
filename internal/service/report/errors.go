package report

import (
	"errors"
)

var (
	ErrPersonRequired = errors.New("person name is required")
)
