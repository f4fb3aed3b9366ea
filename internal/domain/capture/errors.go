package capture

import "errors"

var (
	ErrLocalDuplicate = errors.New("tap duplicates a pending queue entry")
	ErrEntryNotFound  = errors.New("queue entry not found")
)
