package punch

import "errors"

var (
	ErrInvalidType        = errors.New("invalid punch type")
	ErrInvalidTransition  = errors.New("punch type not allowed from current state")
	ErrDailyLimitExceeded = errors.New("daily outside/return limit exceeded")
	ErrAlreadyTerminal    = errors.New("day already closed by OUT")
	ErrRecordNotFound     = errors.New("punch record not found")
)
