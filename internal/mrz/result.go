package mrz

import (
	"strconv"
	"time"
)

// Result is a parsed machine readable zone. Values are OCR-corrected and
// stripped of filler; dates are kept as raw YYMMDD strings. A Result is
// built once by Parser and never modified afterwards.
type Result struct {
	Format          Format `json:"format"`
	DocumentCode    string `json:"document_code"`
	DocumentType    string `json:"document_type"`
	DocumentSubtype string `json:"document_subtype,omitempty"`
	IssuingState    string `json:"issuing_state"`
	Surname         string `json:"surname"`
	GivenNames      string `json:"given_names"`

	DocumentNumber      string `json:"document_number"`
	DocumentNumberValid bool   `json:"document_number_valid"`
	Nationality         string `json:"nationality"`
	BirthDate           string `json:"birth_date"`
	BirthDateValid      bool   `json:"birth_date_valid"`
	Sex                 string `json:"sex"`
	ExpiryDate          string `json:"expiry_date"`
	ExpiryDateValid     bool   `json:"expiry_date_valid"`
	OptionalData        string `json:"optional_data,omitempty"`
	OptionalDataValid   bool   `json:"optional_data_valid"`
	OptionalData2       string `json:"optional_data_2,omitempty"`
	CompositeValid      bool   `json:"composite_valid"`

	AllCheckDigitsValid bool `json:"all_check_digits_valid"`

	Lines  []string `json:"lines"`
	Fields []Field  `json:"fields"`
}

// Field returns the extracted field with the given name.
func (r Result) Field(name string) (Field, bool) {
	for _, f := range r.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// BirthTime interprets the birth date relative to now: a two digit year
// that would lie in the future belongs to the previous century.
func (r Result) BirthTime(now time.Time) (time.Time, bool) {
	t, ok := parseYYMMDD(r.BirthDate, 2000)
	if !ok {
		return time.Time{}, false
	}
	if t.After(now) {
		t = t.AddDate(-100, 0, 0)
	}
	return t, true
}

// ExpiryTime interprets the expiry date, placing it within fifty years
// after now at most.
func (r Result) ExpiryTime(now time.Time) (time.Time, bool) {
	t, ok := parseYYMMDD(r.ExpiryDate, 2000)
	if !ok {
		return time.Time{}, false
	}
	if t.Year() > now.Year()+50 {
		t = t.AddDate(-100, 0, 0)
	}
	return t, true
}

func parseYYMMDD(s string, century int) (time.Time, bool) {
	if len(s) != 6 {
		return time.Time{}, false
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return time.Time{}, false
	}
	year, month, day := century+n/10000, n/100%100, n%100
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Month() != time.Month(month) || t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}
