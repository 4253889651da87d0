package repository

import "errors"

// ErrDuplicateJoinCode is returned when a list is created with a join code
// that is already taken.
var ErrDuplicateJoinCode = errors.New("join code already in use")
