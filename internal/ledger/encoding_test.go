package ledger

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeTemperature(t *testing.T) {
	cases := []struct {
		in   float64
		want uint64
	}{
		{20, 20000},
		{20.15, 20150},
		{27.31, 27310},
		{0, 0},
		{-0.0004, 0},
		{37.4567, 37457},
	}
	for _, tc := range cases {
		got, err := EncodeTemperature(tc.in)
		require.NoError(t, err, "input %v", tc.in)
		assert.Equal(t, tc.want, got, "input %v", tc.in)
	}
}

func TestEncodeTemperatureRejects(t *testing.T) {
	_, err := EncodeTemperature(-3.5)
	assert.ErrorIs(t, err, ErrNegativeTemperature)

	_, err = EncodeTemperature(math.NaN())
	assert.Error(t, err)
	_, err = EncodeTemperature(math.Inf(1))
	assert.Error(t, err)
}

func TestDecodeTemperature(t *testing.T) {
	assert.InDelta(t, 20.15, DecodeTemperature(20150), 1e-9)
	assert.InDelta(t, 2.0, DecodeTemperature(2000), 1e-9)
}

func TestTemperatureRoundTrip(t *testing.T) {
	for _, c := range []float64{0, 2.0, 20.0, 27.31, 41.99} {
		fixed, err := EncodeTemperature(c)
		require.NoError(t, err)
		assert.InDelta(t, c, DecodeTemperature(fixed), 1e-9, "input %v", c)
	}
}
