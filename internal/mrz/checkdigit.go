package mrz

// Filler is the MRZ padding character.
const Filler = '<'

var checkWeights = [3]int{7, 3, 1}

// CheckDigit computes the ICAO 9303 check digit of field.
// Digits map to themselves, letters A-Z to 10-35 and everything else
// (including the filler) to 0. Weights 7, 3, 1 repeat by position.
func CheckDigit(field string) int {
	sum := 0
	for i := 0; i < len(field); i++ {
		sum += charValue(field[i]) * checkWeights[i%3]
	}
	return sum % 10
}

// ValidateCheckDigit compares the computed check digit of field with expected.
// A filler in place of the digit means "no check digit present" and is only
// accepted when optional is set.
func ValidateCheckDigit(field string, expected byte, optional bool) bool {
	if expected == Filler {
		return optional
	}
	if expected < '0' || expected > '9' {
		return false
	}
	return CheckDigit(field) == int(expected-'0')
}

func charValue(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'A' && c <= 'Z':
		return int(c-'A') + 10
	default:
		return 0
	}
}
