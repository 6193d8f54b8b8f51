package mrz

import (
	"fmt"
	"strings"
)

// Kind is the semantic kind of an MRZ field. It selects the OCR correction
// table and the display normalization.
type Kind int

const (
	KindName    Kind = iota // free text, never corrected
	KindAlpha               // letters only: codes, states, nationality
	KindAlnum               // document number, optional data
	KindDate                // YYMMDD
	KindSex                 // M, F or filler
	KindCheck               // single check digit
)

var kindNames = [...]string{"name", "alpha", "alnum", "date", "sex", "check"}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	for i, name := range kindNames {
		if name == string(text) {
			*k = Kind(i)
			return nil
		}
	}
	return fmt.Errorf("mrz: unknown field kind %q", text)
}

// Letters commonly read in place of digits.
var toDigit = map[byte]byte{
	'O': '0', 'Q': '0', 'D': '0',
	'I': '1', 'L': '1',
	'Z': '2',
	'S': '5',
	'G': '6',
	'T': '7',
	'B': '8',
}

// Digits commonly read in place of letters.
var toAlpha = map[byte]byte{
	'0': 'O',
	'1': 'I',
	'2': 'Z',
	'5': 'S',
	'6': 'G',
	'8': 'B',
}

func correctionTable(k Kind) map[byte]byte {
	switch k {
	case KindDate, KindCheck:
		return toDigit
	case KindAlpha:
		return toAlpha
	default:
		return nil
	}
}

// correct rewrites confusable characters of b in place.
func correct(b []byte, k Kind) {
	table := correctionTable(k)
	if table == nil {
		return
	}
	for i, c := range b {
		if r, ok := table[c]; ok {
			b[i] = r
		}
	}
}

// Field is one extracted MRZ field.
type Field struct {
	Name  string `json:"name"`
	Kind  Kind   `json:"kind"`
	Raw   string `json:"raw"`
	Value string `json:"value"`
	// Checked is set when a check digit covers the field and was present.
	Checked bool `json:"checked"`
	Valid   bool `json:"valid"`
}

// display converts a corrected raw field to its presentation form.
func display(raw string, k Kind) string {
	switch k {
	case KindSex:
		if raw == string(Filler) {
			return "X"
		}
		return raw
	case KindAlpha:
		return strings.ReplaceAll(raw, string(Filler), "")
	case KindDate, KindCheck:
		return raw
	default:
		return strings.TrimSpace(strings.ReplaceAll(strings.Trim(raw, string(Filler)), string(Filler), " "))
	}
}

// splitName separates the primary and secondary identifiers of a name field.
// "<<" divides surname from given names, single fillers separate words.
func splitName(raw string) (surname, given string) {
	raw = strings.TrimRight(raw, string(Filler))
	primary, secondary, _ := strings.Cut(raw, "<<")
	return joinNameParts(primary), joinNameParts(secondary)
}

func joinNameParts(s string) string {
	return strings.Join(strings.FieldsFunc(s, func(r rune) bool { return r == Filler }), " ")
}

func isFiller(s string) bool {
	return strings.Trim(s, string(Filler)) == ""
}
