package mrz

import (
	"strings"
)

// Format identifies an ICAO 9303 machine readable zone layout.
type Format int

const (
	FormatUnknown Format = iota
	TD1                  // ID cards, 3 lines x 30
	TD2                  // ID cards, 2 lines x 36
	TD3                  // passports, 2 lines x 44
	MRVA                 // visas, 2 lines x 44
	MRVB                 // visas, 2 lines x 36
)

var formatShapes = [...]struct {
	name   string
	lines  int
	length int
}{
	FormatUnknown: {"unknown", 0, 0},
	TD1:           {"TD1", 3, 30},
	TD2:           {"TD2", 2, 36},
	TD3:           {"TD3", 2, 44},
	MRVA:          {"MRV-A", 2, 44},
	MRVB:          {"MRV-B", 2, 36},
}

// Formats lists every supported format.
var Formats = []Format{TD1, TD2, TD3, MRVA, MRVB}

func (f Format) valid() bool {
	return f > FormatUnknown && int(f) < len(formatShapes)
}

// String returns the ICAO name of the format.
func (f Format) String() string {
	if !f.valid() {
		return formatShapes[FormatUnknown].name
	}
	return formatShapes[f].name
}

// Lines returns the number of MRZ lines of the format.
func (f Format) Lines() int {
	if !f.valid() {
		return 0
	}
	return formatShapes[f].lines
}

// LineLength returns the number of characters per line.
func (f Format) LineLength() int {
	if !f.valid() {
		return 0
	}
	return formatShapes[f].length
}

// MarshalText implements encoding.TextMarshaler.
func (f Format) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Unknown names decode
// to FormatUnknown.
func (f *Format) UnmarshalText(text []byte) error {
	*f = FormatUnknown
	for _, c := range Formats {
		if formatShapes[c].name == string(text) {
			*f = c
			break
		}
	}
	return nil
}

// DetectFormat classifies cleaned MRZ lines. Lines are upper-cased and grouped
// by length; the majority group (ties go to the longer lines) must match a
// format's line count and length exactly. Lines outside the majority group are
// treated as noise. The visa variants share their shape with TD2 and TD3 and
// are told apart by the leading 'V' of the document code.
func DetectFormat(lines []string) (Format, []string, bool) {
	if len(lines) == 0 {
		return FormatUnknown, nil, false
	}

	counts := make(map[int]int, len(lines))
	for _, l := range lines {
		counts[len(l)]++
	}

	majority, best := 0, 0
	for length, n := range counts {
		if n > best || (n == best && length > majority) {
			majority, best = length, n
		}
	}

	group := make([]string, 0, best)
	for _, l := range lines {
		if len(l) != majority {
			continue
		}
		l = strings.ToUpper(l)
		if !isMRZCharset(l) {
			return FormatUnknown, nil, false
		}
		group = append(group, l)
	}

	format := formatForShape(len(group), majority, group)
	if format == FormatUnknown {
		return FormatUnknown, nil, false
	}
	return format, group, true
}

func formatForShape(count, length int, lines []string) Format {
	visa := len(lines) > 0 && len(lines[0]) > 0 && lines[0][0] == 'V'
	switch {
	case count == 3 && length == 30:
		return TD1
	case count == 2 && length == 36:
		if visa {
			return MRVB
		}
		return TD2
	case count == 2 && length == 44:
		if visa {
			return MRVA
		}
		return TD3
	}
	return FormatUnknown
}

func isMRZCharset(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= 'A' && c <= 'Z') && !(c >= '0' && c <= '9') && c != Filler {
			return false
		}
	}
	return true
}
