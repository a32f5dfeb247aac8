package shared

import "errors"

var (
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInsufficientStock is returned when an order asks for more units than available.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrPriceMismatch is returned when an order line carries a stale price.
	ErrPriceMismatch = errors.New("price does not match catalog")
)
