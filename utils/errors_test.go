package utils

import (
	"testing"

	"go.viam.com/test"
)

func TestEntityErrors(t *testing.T) {
	test.That(t, NewEntityNotFoundError(uint32(12)).Error(), test.ShouldEqual, "entity 12 not found")
	test.That(t, NewNegativeValueError("speed", -2).Error(), test.ShouldEqual, "speed must not be negative, got -2")
}
