package utils

import (
	"github.com/pkg/errors"
)

// NewEntityNotFoundError is used when an entity id does not resolve to a live entity.
func NewEntityNotFoundError(id interface{}) error {
	return errors.Errorf("entity %v not found", id)
}

// NewNegativeValueError is used when a configured quantity that must be non-negative is not.
func NewNegativeValueError(field string, value float64) error {
	return errors.Errorf("%s must not be negative, got %v", field, value)
}
