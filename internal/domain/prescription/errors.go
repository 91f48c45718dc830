package prescription

import "errors"

var (
	ErrPrescriptionNotFound = errors.New("prescription not found")
	ErrNotDispensable       = errors.New("prescription is not active and cannot be dispensed")
)
