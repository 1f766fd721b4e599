package util

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
)

var (
	reNonNumeric = regexp.MustCompile(`[^0-9.,+\-]+`)
	reNumber     = regexp.MustCompile(`[-+]?\d*\.\d+|\d+`)
)

// ParseNumeric extracts a value from a noisy cell such as "102-108 °C" or
// "0,93 g/cm³". Two or more numbers are read as a min-max range and the midpoint
// of the first two is returned.
func ParseNumeric(input string) (float64, bool) {
	cleaned := reNonNumeric.ReplaceAllString(input, " ")
	cleaned = strings.ReplaceAll(cleaned, ",", ".")

	tokens := reNumber.FindAllString(cleaned, -1)
	if len(tokens) == 0 {
		return 0, false
	}
	if len(tokens) > 2 {
		tokens = tokens[:2]
	}

	values := make([]float64, 0, len(tokens))
	for _, tok := range tokens {
		// Out-of-range tokens keep the ±Inf or zero ParseFloat rounds them to.
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil && !errors.Is(err, strconv.ErrRange) {
			return 0, false
		}
		values = append(values, v)
	}
	if len(values) == 1 {
		return values[0], true
	}
	return (values[0] + values[1]) / 2, true
}

func FloatPtr(v float64) *float64 {
	return &v
}

func StringPtr(v string) *string {
	return &v
}
