package domain

import "errors"

var (
	ErrNotFound          = errors.New("resource not found")
	ErrDuplicateResource = errors.New("resource already exists")
	ErrInvalidInput      = errors.New("invalid input")
)
