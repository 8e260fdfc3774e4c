package services

import (
	"errors"

	"github.com/anonto42/campus-hub/backend/internal/repositories"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrForbidden  = errors.New("forbidden")
	ErrConflict   = errors.New("conflict")
	ErrValidation = errors.New("validation failed")
)

// translate maps repository errors onto the service taxonomy.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repositories.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, repositories.ErrInvalidID):
		return ErrValidation
	case errors.Is(err, repositories.ErrDuplicate):
		return ErrConflict
	}
	return err
}
