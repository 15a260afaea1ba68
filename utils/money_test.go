package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSumAvoidsFloatDrift(t *testing.T) {
	assert.True(t, Sum(0.1, 0.2).Equal(Money(0.3)))
	assert.Equal(t, 0.3, Round2(Sum(0.1, 0.2)))
}

func TestApproxEqual(t *testing.T) {
	assert.True(t, ApproxEqual(Money(500), Money(500.01)))
	assert.True(t, ApproxEqual(Money(500.01), Money(500)))
	assert.False(t, ApproxEqual(Money(500), Money(500.02)))
}

func TestExceeds(t *testing.T) {
	assert.False(t, Exceeds(Money(1000.01), Money(1000)))
	assert.True(t, Exceeds(Money(1000.02), Money(1000)))
	assert.False(t, Exceeds(Money(999), Money(1000)))
}

func TestBalanceDue(t *testing.T) {
	assert.Equal(t, 650.0, Round2(BalanceDue(1000, -100, 250)))
	assert.Equal(t, 0.0, Round2(BalanceDue(800, 0, 800)))
}
