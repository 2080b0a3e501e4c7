package app

import (
	"errors"

	"listwise/internal/model"
)

var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrListNotFound        = errors.New("list not found")
	ErrNoHistory           = errors.New("no history for this list")
	ErrInsufficientHistory = errors.New("not enough past lists to recommend from")
	ErrInsufficientUsers   = errors.New("not enough users to recommend from")
)

// validUserID rejects the empty id and the scope reserved for names shared by all
// users.
func validUserID(id string) bool {
	return id != "" && id != model.UniversalScope
}
