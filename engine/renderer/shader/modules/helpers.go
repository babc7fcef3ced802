package modules

import (
	"math"
	"strconv"
)

func uintLiteral(v uint32) string {
	return strconv.FormatUint(uint64(v), 10) + "u"
}

func floatLiteral(v float32) string {
	s := strconv.FormatFloat(float64(v), 'f', -1, 32)
	for _, c := range s {
		if c == '.' || c == 'e' {
			return s
		}
	}
	return s + ".0"
}

func log2(v float32) float32 {
	return float32(math.Log2(float64(v)))
}

func exp(v float32) float32 {
	return float32(math.Exp(float64(v)))
}

func saturate(v float32) float32 {
	return min(max(v, 0), 1)
}
