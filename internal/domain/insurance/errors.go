package insurance

import "errors"

var (
	ErrClaimNotFound           = errors.New("insurance claim not found")
	ErrInvalidStatusTransition = errors.New("invalid insurance claim status transition")
	ErrInvalidAmount           = errors.New("claim amount must be positive and not exceed the bill total")
	ErrRejectionReasonRequired = errors.New("a rejection reason is required")
	ErrNoInsuranceOnFile       = errors.New("patient has no insurance on file and none was given")
	ErrBillNotClaimable        = errors.New("cancelled bills cannot be claimed")
)
