package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeCost(t *testing.T) {
	p := ResolvePricing("gpt-4o-mini")
	in, out, total := ComputeCost(1_000_000, 1_000_000, p)
	assert.InDelta(t, 0.15, in, 1e-9)
	assert.InDelta(t, 0.60, out, 1e-9)
	assert.InDelta(t, 0.75, total, 1e-9)
}

func TestResolvePricingUnknownModel(t *testing.T) {
	p := ResolvePricing("some-future-model")
	_, _, total := ComputeCost(5000, 5000, p)
	assert.Zero(t, total)
}
