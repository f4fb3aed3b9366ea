package employee

import "errors"

var (
	ErrInvalidFormat = errors.New("card serial is malformed")
	ErrNotRegistered = errors.New("card is not registered to an active employee")
	ErrNotFound      = errors.New("employee not found")
	ErrCardInUse     = errors.New("card already registered to another active employee")
)
