package intake

import "errors"

// ErrStoreUnavailable wraps any record-store failure, including an open
// circuit breaker. It is a transport condition, never a rejection: callers
// buffer the tap instead of refusing it.
var ErrStoreUnavailable = errors.New("record store unavailable")
