package job

import "errors"

var (
	ErrValidation   = errors.New("job: validation failed")
	ErrDuplicateID  = errors.New("job: duplicate id")
	ErrNotFound     = errors.New("job: not found")
	ErrStaleLease   = errors.New("job: stale lease")
	ErrInvalidState = errors.New("job: invalid state transition")
)
