package device

import "errors"

var (
	ErrDeviceError  = errors.New("device error")
	ErrReaderClosed = errors.New("reader closed")
)
