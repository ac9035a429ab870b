package codec

import (
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	// hugeFloat is the magnitude above which FormatFloat rounds to hugeFloatPlaces
	// decimals of mantissa instead of printing the shortest round-trip text
	hugeFloat       float64 = 1e36
	hugeFloatPlaces int32   = 7
)

// FormatFloat returns the text used for float fields. Values are printed with the
// shortest representation that parses back to the same float64, except for magnitudes
// above 1e36. Those were stored as single precision by the game and widening them to
// float64 produces long tails of noise digits (3.4028234663852886e+38 for the largest
// float32), so they are rounded to 8 significant digits instead (3.4028235e+38).
// Decoding and encoding such a value again yields the same text.
func FormatFloat(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}

	if math.Abs(f) > hugeFloat {
		return formatHugeFloat(f)
	}

	s := strconv.FormatFloat(f, 'g', -1, 64)
	if s == "-0" {
		return "0"
	}

	return s
}

func formatHugeFloat(f float64) string {
	exp := int32(math.Floor(math.Log10(math.Abs(f))))
	mantissa := decimal.NewFromFloat(f).Shift(-exp)

	// Log10 may be off by one right at a power of ten
	ten := decimal.NewFromInt(10)
	for mantissa.Abs().GreaterThanOrEqual(ten) {
		mantissa = mantissa.Shift(-1)
		exp++
	}
	for mantissa.Abs().LessThan(decimal.NewFromInt(1)) {
		mantissa = mantissa.Shift(1)
		exp--
	}

	mantissa = mantissa.Round(hugeFloatPlaces)
	if mantissa.Abs().GreaterThanOrEqual(ten) {
		mantissa = mantissa.Shift(-1).Round(hugeFloatPlaces)
		exp++
	}

	return mantissa.String() + "e+" + strconv.Itoa(int(exp))
}

// ParseFloat accepts the text written by FormatFloat as well as the usual variations
// found in hand edited documents (surrounding spaces, a leading '+').
func ParseFloat(text string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(text), 64)
}
