package ledger

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

// TemperatureScale is the fixed-point factor the oracle contract and its
// frontend agree on: 20.15°C is stored as 20150.
const TemperatureScale = 1000

var ErrNegativeTemperature = errors.New("temperature cannot be encoded as u64")

// EncodeTemperature converts Celsius to the contract's u64 fixed-point form.
func EncodeTemperature(celsius float64) (uint64, error) {
	if math.IsNaN(celsius) || math.IsInf(celsius, 0) {
		return 0, fmt.Errorf("encode temperature: not a finite number: %v", celsius)
	}
	scaled := math.Round(celsius * TemperatureScale)
	if scaled < 0 {
		return 0, fmt.Errorf("%w: %.2f", ErrNegativeTemperature, celsius)
	}
	return uint64(scaled), nil
}

// DecodeTemperature turns an on-chain u64 back into Celsius.
func DecodeTemperature(fixed uint64) float64 {
	return float64(fixed) / TemperatureScale
}

// u64 values travel as decimal strings in move call arguments.
func u64Arg(v uint64) string {
	return strconv.FormatUint(v, 10)
}
