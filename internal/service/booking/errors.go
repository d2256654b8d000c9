package booking

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrSubcategoryNotFound = errors.New("subcategory not found")
	ErrBookingNotFound     = errors.New("booking not found")
)

// RateLimitedError reports a submission refused by the rate limiter.
// RetryAfter says when the earliest hit ages out of the window.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry in %s", e.RetryAfter)
}
