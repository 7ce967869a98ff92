package models

import "errors"

// Domain errors, matched with errors.Is at the request boundary and
// converted into a flash message plus redirect.
var (
	ErrNotFound        = errors.New("resource not found")
	ErrForbidden       = errors.New("not the owner")
	ErrUnauthenticated = errors.New("login required")
	ErrDuplicateSlug   = errors.New("slug already exists")
	ErrValidation      = errors.New("invalid input")
)
