// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios. For
// example, ErrForbidden indicates that the current user is not
// authorized to act on a record belonging to another apartment or
// society, while ErrConflict signals that an operation cannot
// proceed because of existing state (e.g. redeeming a code that
// was already consumed).
package repository

import "errors"

// ErrForbidden is returned when the caller attempts an operation
// on a record outside their society, apartment or role. Handlers
// should translate this into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when an update cannot be performed
// because of conflicting state, such as consuming a check-in code
// that another gate already redeemed. Handlers should translate
// this into an HTTP 409 response.
var ErrConflict = errors.New("conflict")
