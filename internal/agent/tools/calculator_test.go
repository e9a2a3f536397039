package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculate(t *testing.T) {
	cases := []struct {
		expr string
		want float64
	}{
		{"2 + 3 * 4", 14},
		{"(2 + 3) * 4", 20},
		{"10 / 4", 2.5},
		{"-5 + 3", -2},
		{"--4", 4},
		{"2^10", 1024},
		{"2**10", 1024},
		{"2^3^2", 512}, // right associative
		{"5000*0.15", 750},
		{"1/3", 0.333333}, // rounded to 6 places
	}
	for _, tc := range cases {
		t.Run(tc.expr, func(t *testing.T) {
			got, err := Calculate(tc.expr)
			require.NoError(t, err)
			assert.InDelta(t, tc.want, got, 1e-9)
		})
	}
}

func TestCalculateRejects(t *testing.T) {
	cases := []string{
		"",
		"2 +",
		"(2 + 3",
		"2 / 0",
		"abc",
		"2 + x",
		"1e12 * 1e12",  // identifiers (the e) are not numbers
		"999999999999", // over the result bound
		"10^400 / 10^399",
	}
	for _, expr := range cases {
		t.Run(expr, func(t *testing.T) {
			_, err := Calculate(expr)
			assert.Error(t, err)
		})
	}
}

func TestCalculatorTool(t *testing.T) {
	c := NewCalculator()
	assert.Equal(t, RiskReadOnly, c.Risk())
	assert.Equal(t, ToolCalculator, c.Info().Name)

	require.NoError(t, c.Validate(json.RawMessage(`{"expr":"2+2"}`)))
	assert.Error(t, c.Validate(json.RawMessage(`{"expr":""}`)))
	assert.Error(t, c.Validate(json.RawMessage(`"just a string"`)))

	out, err := c.Invoke(context.Background(), json.RawMessage(`{"expr":"6*7"}`))
	require.NoError(t, err)
	assert.Equal(t, "42", out)
}
