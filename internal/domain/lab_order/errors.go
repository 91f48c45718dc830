package lab_order

import "errors"

var (
	ErrLabOrderNotFound        = errors.New("lab order not found")
	ErrInvalidStatusTransition = errors.New("invalid lab order status transition")
)
