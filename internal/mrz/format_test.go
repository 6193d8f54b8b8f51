package mrz

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func filled(prefix string, n int) string {
	return prefix + strings.Repeat("<", n-len(prefix))
}

func TestDetectFormat_SupportedShapes(t *testing.T) {
	tests := []struct {
		lines []string
		want  Format
	}{
		{[]string{filled("I<", 30), filled("", 30), filled("", 30)}, TD1},
		{[]string{filled("I<", 36), filled("", 36)}, TD2},
		{[]string{filled("P<", 44), filled("", 44)}, TD3},
		{[]string{filled("V<", 44), filled("", 44)}, MRVA},
		{[]string{filled("V<", 36), filled("", 36)}, MRVB},
		{[]string{filled("A<", 36), filled("", 36)}, TD2},
		{[]string{filled("C<", 30), filled("", 30), filled("", 30)}, TD1},
	}

	for _, tt := range tests {
		t.Run(tt.want.String(), func(t *testing.T) {
			got, lines, ok := DetectFormat(tt.lines)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
			assert.Len(t, lines, tt.want.Lines())
			for _, l := range lines {
				assert.Len(t, l, tt.want.LineLength())
			}
		})
	}
}

func TestDetectFormat_Totality(t *testing.T) {
	supported := map[[2]int]bool{
		{3, 30}: true,
		{2, 36}: true,
		{2, 44}: true,
	}

	for count := 1; count <= 4; count++ {
		for length := 20; length <= 50; length++ {
			lines := make([]string, count)
			for i := range lines {
				lines[i] = filled("P", length)
			}

			format, _, ok := DetectFormat(lines)
			if supported[[2]int{count, length}] {
				assert.True(t, ok, "%d x %d", count, length)
				assert.Equal(t, count, format.Lines())
				assert.Equal(t, length, format.LineLength())
			} else {
				assert.False(t, ok, "%d x %d", count, length)
				assert.Equal(t, FormatUnknown, format)
			}
		}
	}
}

func TestDetectFormat_MajorityLengthDropsNoise(t *testing.T) {
	lines := []string{filled("P<", 44), "UTOPIAPASSPORTNUMBERXX<<<<<<<<<<<<<<<<<", filled("", 44)}

	format, kept, ok := DetectFormat(lines)
	require.True(t, ok)
	assert.Equal(t, TD3, format)
	assert.Equal(t, []string{lines[0], lines[2]}, kept)
}

func TestDetectFormat_UppercasesLines(t *testing.T) {
	_, lines, ok := DetectFormat([]string{filled("p<uto", 44), filled("l898", 44)})
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(lines[0], "P<UTO"))
	assert.True(t, strings.HasPrefix(lines[1], "L898"))
}

func TestDetectFormat_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
	}{
		{"nil", nil},
		{"mixed lengths without majority shape", []string{filled("P<", 44), filled("", 36)}},
		{"bad characters", []string{filled("P<", 43) + "*", filled("", 44)}},
		{"four passport lines", []string{filled("P<", 44), filled("", 44), filled("", 44), filled("", 44)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			format, lines, ok := DetectFormat(tt.lines)
			assert.False(t, ok)
			assert.Nil(t, lines)
			assert.Equal(t, FormatUnknown, format)
		})
	}
}

func TestFormat_String(t *testing.T) {
	assert.Equal(t, "MRV-A", MRVA.String())
	assert.Equal(t, "unknown", Format(99).String())
	assert.Equal(t, 0, Format(99).Lines())

	text, err := TD1.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "TD1", string(text))
}

func TestFormat_UnmarshalText(t *testing.T) {
	for _, f := range Formats {
		text, err := f.MarshalText()
		require.NoError(t, err)
		var got Format
		require.NoError(t, got.UnmarshalText(text))
		assert.Equal(t, f, got)
	}

	got := TD3
	require.NoError(t, got.UnmarshalText([]byte("TD9")))
	assert.Equal(t, FormatUnknown, got)
}
