package pricing

import "errors"

var (
	ErrPriceNotFound     = errors.New("service price not found")
	ErrInvalidCategory   = errors.New("invalid service category")
	ErrNegativePrice     = errors.New("price cannot be negative")
	ErrDuplicateService  = errors.New("a service with this name already exists in the category")
	ErrEmptyServiceName  = errors.New("service name is required")
	ErrMalformedPriceRow = errors.New("malformed price list row")
)
