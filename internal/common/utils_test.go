package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasAny(t *testing.T) {
	assert.True(t, HasAny("0x2::contract::WeatherOracle", "::WeatherOracle"))
	assert.True(t, HasAny("0x2::contract::UserPrediction", "::WeatherOracle", "::UserPrediction"))
	assert.False(t, HasAny("0x2::contract::weatheroracle", "::WeatherOracle"))
	assert.False(t, HasAny("anything"))
	assert.False(t, HasAny("anything", ""))
}

func TestRoundTo(t *testing.T) {
	assert.Equal(t, 20.0, RoundTo(293.15-273.15, 2))
	assert.Equal(t, 1.24, RoundTo(1.235000001, 2))
	assert.Equal(t, -3.46, RoundTo(-3.456, 2))
	assert.Equal(t, 12.0, RoundTo(11.6, 0))
}
