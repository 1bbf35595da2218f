package services

import "errors"

// Client-error sentinels the handler layer maps to 4xx responses.
var (
	ErrUsernameTaken      = errors.New("username already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidRole        = errors.New("invalid role")
	ErrInvalidQuantity    = errors.New("quantity must be positive")
	ErrCartEmpty          = errors.New("cart is empty")
	ErrOrderNotPending    = errors.New("order is not pending")
)
