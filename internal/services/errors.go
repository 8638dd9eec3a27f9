package services

import (
	"errors"
	"fmt"

	"shop_ledger/internal/models"
	"shop_ledger/internal/repository"
)

var (
	ErrValidation = errors.New("validation failed")
	ErrForbidden  = errors.New("forbidden")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func invalid(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// classify maps repository and model errors onto the service taxonomy.
func classify(err error) error {
	var te *models.TransitionError
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrValidation), errors.Is(err, ErrForbidden),
		errors.Is(err, ErrNotFound), errors.Is(err, ErrConflict):
		return err
	case errors.As(err, &te):
		return fmt.Errorf("%w: %s", ErrConflict, te.Error())
	case errors.Is(err, models.ErrOrderDelivered):
		return fmt.Errorf("%w: %s", ErrConflict, err.Error())
	case errors.Is(err, repository.ErrVersionConflict):
		return fmt.Errorf("%w: order was modified concurrently", ErrConflict)
	case errors.Is(err, repository.ErrDuplicateKey):
		return fmt.Errorf("%w: %s", ErrConflict, err.Error())
	case errors.Is(err, repository.ErrInsufficientStock):
		return fmt.Errorf("%w: %s", ErrConflict, err.Error())
	case errors.Is(err, repository.ErrRecordNotFound):
		return fmt.Errorf("%w: %s", ErrNotFound, err.Error())
	}
	return err
}
