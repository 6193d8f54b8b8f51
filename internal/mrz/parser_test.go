package mrz

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	td3Sample = []string{
		"P<UTOERIKSSON<<ANNA<MARIA<<<<<<<<<<<<<<<<<<<",
		"L898902C36UTO7408122F1204159ZE184226B<<<<<10",
	}
	td1Sample = []string{
		"I<UTOD231458907<<<<<<<<<<<<<<<",
		"7408122F1204159UTO<<<<<<<<<<<6",
		"ERIKSSON<<ANNA<MARIA<<<<<<<<<<",
	}
	td2Sample = []string{
		"I<UTOERIKSSON<<ANNA<MARIA<<<<<<<<<<<",
		"D231458907UTO7408122F1204159<<<<<<<6",
	}
	mrvaSample = []string{
		"V<UTOERIKSSON<<ANNA<MARIA<<<<<<<<<<<<<<<<<<<",
		"L8988901C4XXX4009078F96121096ZE184226B<<<<<<",
	}
	mrvbSample = []string{
		"V<UTOERIKSSON<<ANNA<MARIA<<<<<<<<<<<",
		"L8988901C4XXX4009078F9612109<<<<<<<<",
	}
)

func TestParser_TD3Passport(t *testing.T) {
	r, ok := NewParser().Parse(td3Sample)
	require.True(t, ok)

	assert.Equal(t, TD3, r.Format)
	assert.Equal(t, "P", r.DocumentType)
	assert.Equal(t, "", r.DocumentSubtype)
	assert.Equal(t, "UTO", r.IssuingState)
	assert.Equal(t, "ERIKSSON", r.Surname)
	assert.Equal(t, "ANNA MARIA", r.GivenNames)
	assert.Equal(t, "L898902C3", r.DocumentNumber)
	assert.Equal(t, "UTO", r.Nationality)
	assert.Equal(t, "740812", r.BirthDate)
	assert.Equal(t, "F", r.Sex)
	assert.Equal(t, "120415", r.ExpiryDate)
	assert.Equal(t, "ZE184226B", r.OptionalData)
	assert.True(t, r.DocumentNumberValid)
	assert.True(t, r.BirthDateValid)
	assert.True(t, r.ExpiryDateValid)
	assert.True(t, r.OptionalDataValid)
	assert.True(t, r.CompositeValid)
	assert.True(t, r.AllCheckDigitsValid)
	assert.Equal(t, td3Sample, r.Lines)
}

func TestParser_TD1IdentityCard(t *testing.T) {
	r, ok := NewParser().Parse(td1Sample)
	require.True(t, ok)

	assert.Equal(t, TD1, r.Format)
	assert.Equal(t, "I", r.DocumentType)
	assert.Equal(t, "D23145890", r.DocumentNumber)
	assert.Equal(t, "ERIKSSON", r.Surname)
	assert.Equal(t, "ANNA MARIA", r.GivenNames)
	assert.Equal(t, "740812", r.BirthDate)
	assert.Equal(t, "120415", r.ExpiryDate)
	assert.Equal(t, "UTO", r.Nationality)
	assert.Equal(t, "", r.OptionalData)
	assert.True(t, r.CompositeValid)
	assert.True(t, r.AllCheckDigitsValid)
}

func TestParser_TD1LongDocumentNumber(t *testing.T) {
	lines := []string{
		"I<UTOD23145890<AB12345678<<<<<",
		"7408122F1204159UTO<<<<<<<<<<<6",
		"ERIKSSON<<ANNA<MARIA<<<<<<<<<<",
	}

	r, ok := NewParser().Parse(lines)
	require.True(t, ok)

	assert.Equal(t, "D23145890AB1234567", r.DocumentNumber)
	assert.Equal(t, "", r.OptionalData)
	assert.True(t, r.DocumentNumberValid)
	assert.True(t, r.AllCheckDigitsValid)
}

func TestParser_TD1LongDocumentNumberCheckDigitCorrection(t *testing.T) {
	// check digit 8 read as B
	lines := []string{
		"I<UTOD23145890<AB1234567B<<<<<",
		"7408122F1204159UTO<<<<<<<<<<<6",
		"ERIKSSON<<ANNA<MARIA<<<<<<<<<<",
	}

	r, ok := NewParser().Parse(lines)
	require.True(t, ok)
	assert.Equal(t, "D23145890AB1234567", r.DocumentNumber)
	assert.True(t, r.DocumentNumberValid)
	assert.True(t, r.AllCheckDigitsValid)

	raw, ok := NewParser(WithOCRCorrection(false)).Parse(lines)
	require.True(t, ok)
	assert.False(t, raw.DocumentNumberValid)
	assert.False(t, raw.AllCheckDigitsValid)
}

func TestCorrect(t *testing.T) {
	tests := []struct {
		kind Kind
		in   string
		want string
	}{
		{KindAlpha, "U70", "U7O"},
		{KindAlpha, "4125680", "4IZSGBO"},
		{KindDate, "OQDILZSGTB", "0001125678"},
		{KindCheck, "<", "<"},
		{KindAlnum, "L898902C3", "L898902C3"},
		{KindName, "ER1KSSON", "ER1KSSON"},
		{KindSex, "0", "0"},
	}

	for _, tt := range tests {
		b := []byte(tt.in)
		correct(b, tt.kind)
		assert.Equal(t, tt.want, string(b), "%s %q", tt.kind, tt.in)
	}
}

func TestParser_TD2IdentityCard(t *testing.T) {
	r, ok := NewParser().Parse(td2Sample)
	require.True(t, ok)

	assert.Equal(t, TD2, r.Format)
	assert.Equal(t, "D23145890", r.DocumentNumber)
	assert.Equal(t, "ERIKSSON", r.Surname)
	assert.Equal(t, "ANNA MARIA", r.GivenNames)
	assert.True(t, r.CompositeValid)
	assert.True(t, r.AllCheckDigitsValid)
}

func TestParser_Visas(t *testing.T) {
	for _, tt := range []struct {
		lines  []string
		format Format
		opt    string
	}{
		{mrvaSample, MRVA, "6ZE184226B"},
		{mrvbSample, MRVB, ""},
	} {
		t.Run(tt.format.String(), func(t *testing.T) {
			r, ok := NewParser().Parse(tt.lines)
			require.True(t, ok)

			assert.Equal(t, tt.format, r.Format)
			assert.Equal(t, "V", r.DocumentType)
			assert.Equal(t, "L8988901C", r.DocumentNumber)
			assert.Equal(t, "XXX", r.Nationality)
			assert.Equal(t, "400907", r.BirthDate)
			assert.Equal(t, "961210", r.ExpiryDate)
			assert.Equal(t, tt.opt, r.OptionalData)
			assert.True(t, r.CompositeValid, "visas carry no composite check digit")
			assert.True(t, r.AllCheckDigitsValid)
			_, hasComposite := r.Field(FieldComposite)
			assert.False(t, hasComposite)
		})
	}
}

func TestParser_MRVBFillerCheckDigitsFail(t *testing.T) {
	lines := []string{
		mrvbSample[0],
		"L8988901C<XXX999999<F999999<<<<<<<<<",
	}

	r, ok := NewParser().Parse(lines)
	require.True(t, ok)
	require.Equal(t, MRVB, r.Format)

	assert.False(t, r.DocumentNumberValid)
	assert.False(t, r.BirthDateValid)
	assert.False(t, r.ExpiryDateValid)
	assert.False(t, r.AllCheckDigitsValid)
	for _, name := range []string{FieldDocumentNumber, FieldBirthDate, FieldExpiryDate} {
		f, _ := r.Field(name)
		assert.True(t, f.Checked, name)
		assert.False(t, f.Valid, name)
	}
}

func TestParser_TD3EmptyPersonalNumberWithoutCheckDigit(t *testing.T) {
	lines := []string{
		td3Sample[0],
		"L898902C36UTO7408122F1204159<<<<<<<<<<<<<<<8",
	}

	r, ok := NewParser().Parse(lines)
	require.True(t, ok)

	assert.Equal(t, "", r.OptionalData)
	assert.True(t, r.OptionalDataValid)
	assert.True(t, r.AllCheckDigitsValid)
}

func TestParser_FillerCheckDigitRequired(t *testing.T) {
	lines := []string{td3Sample[0], "L898902C3<UTO7408122F1204159ZE184226B<<<<<10"}

	r, ok := NewParser().Parse(lines)
	require.True(t, ok)
	assert.False(t, r.DocumentNumberValid)
	assert.False(t, r.AllCheckDigitsValid)
}

func TestParser_OCRCorrection(t *testing.T) {
	// nationality read as "UT0", birth date with O and I, sex untouched
	lines := []string{
		"P<UTOERIKSSON<<ANNA<MARIA<<<<<<<<<<<<<<<<<<<",
		"L898902C36UT07408I22F12O4159ZE184226B<<<<<10",
	}

	r, ok := NewParser().Parse(lines)
	require.True(t, ok)
	assert.Equal(t, "UTO", r.Nationality)
	assert.Equal(t, "740812", r.BirthDate)
	assert.Equal(t, "120415", r.ExpiryDate)
	assert.True(t, r.AllCheckDigitsValid)

	f, _ := r.Field(FieldBirthDate)
	assert.Equal(t, "7408I2", f.Raw)
	assert.Equal(t, "740812", f.Value)

	raw, ok := NewParser(WithOCRCorrection(false)).Parse(lines)
	require.True(t, ok)
	assert.Equal(t, "UT0", raw.Nationality)
	assert.Equal(t, "7408I2", raw.BirthDate)
	assert.False(t, raw.AllCheckDigitsValid)
}

func TestParser_NamesAreNotCorrected(t *testing.T) {
	lines := []string{
		"P<UTOER1KSSON<<ANNA<MARIA<<<<<<<<<<<<<<<<<<<",
		td3Sample[1],
	}

	r, ok := NewParser().Parse(lines)
	require.True(t, ok)
	assert.Equal(t, "ER1KSSON", r.Surname)
}

func TestParser_DocumentNumberIsNotCorrected(t *testing.T) {
	r, ok := NewParser().Parse(td3Sample)
	require.True(t, ok)
	assert.Equal(t, "L898902C3", r.DocumentNumber, "letters inside alphanumeric fields stay letters")
}

func TestParser_DatesAreNotCalendarValidated(t *testing.T) {
	// month 00 and day 40 still parse; only the check digit judges the data
	lines := []string{td3Sample[0], "L898902C36UTO7400403F1204159ZE184226B<<<<<10"}

	r, ok := NewParser().Parse(lines)
	require.True(t, ok)
	assert.Equal(t, "740040", r.BirthDate)
	assert.True(t, r.BirthDateValid)
	assert.False(t, r.CompositeValid)

	_, ok = r.BirthTime(time.Now())
	assert.False(t, ok)
}

func TestParser_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
	}{
		{"empty", nil},
		{"single line", []string{td3Sample[1]}},
		{"wrong length", []string{td3Sample[0][:40], td3Sample[1][:40]}},
		{"invalid characters", []string{"P<UTOERIKSSON<<ANNA<MARIA<<<<<<<<<<<<<<<<<<#", td3Sample[1]}},
		{"filler document code", []string{"<<UTOERIKSSON<<ANNA<MARIA<<<<<<<<<<<<<<<<<<<", td3Sample[1]}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, ok := NewParser().Parse(tt.lines)
			assert.False(t, ok)
			assert.Equal(t, Result{}, r)
		})
	}
}

func TestParser_ParseText(t *testing.T) {
	text := "UTOPIA PASSPORT\n\n" +
		"P<UTO ERIKSSON<<ANNA<MARIA<<<<<<<<<<<<<<<<<<<\r\n" +
		"L898902C36UTO7408122F1204159ZE184226B<<<<<10\n"

	r, ok := NewParser().ParseText(text)
	require.True(t, ok)
	assert.Equal(t, TD3, r.Format)
	assert.True(t, r.AllCheckDigitsValid)

	_, ok = NewParser().ParseText("   \n\n")
	assert.False(t, ok)
}

// Flipping any single check digit must clear the aggregate flag.
func TestParser_AggregateValidityMonotonic(t *testing.T) {
	samples := map[Format][]string{
		TD1:  td1Sample,
		TD2:  td2Sample,
		TD3:  td3Sample,
		MRVA: mrvaSample,
		MRVB: mrvbSample,
	}

	for format, lines := range samples {
		lay, _ := layoutFor(format)
		for _, cs := range lay.checks {
			t.Run(format.String()+"/"+cs.field, func(t *testing.T) {
				base, ok := NewParser().Parse(lines)
				require.True(t, ok)
				require.True(t, base.AllCheckDigitsValid)

				flipped := append([]string(nil), lines...)
				b := []byte(flipped[cs.line])
				b[cs.pos] = '0' + (b[cs.pos]-'0'+1)%10
				flipped[cs.line] = string(b)

				r, ok := NewParser().Parse(flipped)
				require.True(t, ok)
				assert.False(t, r.AllCheckDigitsValid)
			})
		}
	}
}

func TestResult_Times(t *testing.T) {
	r, ok := NewParser().Parse(td3Sample)
	require.True(t, ok)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	birth, ok := r.BirthTime(now)
	require.True(t, ok)
	assert.Equal(t, time.Date(1974, 8, 12, 0, 0, 0, 0, time.UTC), birth)

	expiry, ok := r.ExpiryTime(now)
	require.True(t, ok)
	assert.Equal(t, time.Date(2012, 4, 15, 0, 0, 0, 0, time.UTC), expiry)
}

func TestResult_JSONRoundTrip(t *testing.T) {
	r, ok := NewParser().Parse(td3Sample)
	require.True(t, ok)

	data, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"format":"TD3"`)
	assert.Contains(t, string(data), `"kind":"alnum"`)

	var back Result
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, r, back)

	var k Kind
	assert.Error(t, k.UnmarshalText([]byte("roman")))
}
