package engine

import (
	"errors"
	"fmt"
)

// QuotaExceededError is returned when a single run would insert more
// occurrences than its configured limit. The run's transaction rolls
// back and the watermark stays put, so nothing is half-generated.
//
// The usual cause is a rule created with a start date decades in the
// past; the limit turns a runaway backfill into a diagnosable error.
type QuotaExceededError struct {
	RunToken string // The run that hit the limit
	Limit    int    // Maximum occurrences allowed per run
}

// Error implements the error interface.
func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("run %s exceeded occurrence quota: limit %d", e.RunToken, e.Limit)
}

// IsQuotaExceeded returns true if the error is a QuotaExceededError.
// Uses errors.As to handle wrapped errors.
func IsQuotaExceeded(err error) bool {
	var qe *QuotaExceededError
	return errors.As(err, &qe)
}
