package billing

import "errors"

var (
	ErrBillNotFound            = errors.New("bill not found")
	ErrAlreadyBilled           = errors.New("source has already been billed")
	ErrNothingToBill           = errors.New("no billable line matched the price list")
	ErrInvalidStatusTransition = errors.New("invalid bill status transition")
	ErrInvalidDiscount         = errors.New("discount must be between zero and the bill subtotal")
	ErrBillNotEditable         = errors.New("only pending bills can be changed")
	ErrInvalidPaymentMethod    = errors.New("invalid payment method")
	ErrInvalidQuantity         = errors.New("quantity must be at least 1")
)
