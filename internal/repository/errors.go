// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// services and handlers to distinguish between different failure
// scenarios without inspecting driver-specific errors.
package repository

import "errors"

// ErrNotFound is returned when a lookup matches no row. Handlers
// should translate this into an HTTP 404 response, except on the
// login path where it is folded into "invalid credentials".
var ErrNotFound = errors.New("not found")

// ErrEmailExists is returned when inserting a user whose email is
// already taken. It is produced from the unique key on users.email, so
// it also covers two registrations racing for the same address.
var ErrEmailExists = errors.New("email already exists")
