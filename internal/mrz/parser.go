package mrz

import (
	"strings"
)

// Parser decodes MRZ lines into a Result. A Parser is read-only after
// construction and safe for concurrent use.
type Parser struct {
	correction bool
}

// Option configures a Parser.
type Option func(*Parser)

// WithOCRCorrection toggles confusable-character correction on fields whose
// kind makes the substitution unambiguous. Enabled by default.
func WithOCRCorrection(enabled bool) Option {
	return func(p *Parser) {
		p.correction = enabled
	}
}

// NewParser creates a parser.
func NewParser(opts ...Option) *Parser {
	p := &Parser{correction: true}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ParseText cleans raw OCR text with ExtractLines and parses the result.
func (p *Parser) ParseText(text string) (Result, bool) {
	lines := ExtractLines(text)
	if lines == nil {
		return Result{}, false
	}
	return p.Parse(lines)
}

// Parse decodes cleaned MRZ lines. It reports false when the lines do not
// form a supported MRZ; it never returns a partial result.
func (p *Parser) Parse(lines []string) (Result, bool) {
	format, normalized, ok := DetectFormat(lines)
	if !ok {
		return Result{}, false
	}
	lay, ok := layoutFor(format)
	if !ok {
		return Result{}, false
	}

	work := make([][]byte, len(normalized))
	for i, l := range normalized {
		work[i] = []byte(l)
	}
	if p.correction {
		for _, fs := range lay.fields {
			correct(work[fs.at.line][fs.at.start:fs.at.end], fs.kind)
		}
		for _, cs := range lay.checks {
			correct(work[cs.line][cs.pos:cs.pos+1], KindCheck)
		}
	}

	code := work[0][0]
	if code < 'A' || code > 'Z' {
		return Result{}, false
	}

	fields := make([]Field, 0, len(lay.fields)+1)
	index := make(map[string]int, len(lay.fields)+1)
	for _, fs := range lay.fields {
		raw := string(work[fs.at.line][fs.at.start:fs.at.end])
		index[fs.name] = len(fields)
		fields = append(fields, Field{
			Name:  fs.name,
			Kind:  fs.kind,
			Raw:   normalized[fs.at.line][fs.at.start:fs.at.end],
			Value: display(raw, fs.kind),
			Valid: true,
		})
	}

	allValid := true
	for _, cs := range lay.checks {
		data, expected := checkInput(work, cs)
		if format == TD1 && cs.field == FieldDocumentNumber && expected == Filler {
			if ext, digit, rest, ok := extendedDocumentNumber(work, p.correction); ok {
				data, expected = ext, digit
				fields[index[FieldDocumentNumber]].Value = display(ext, KindAlnum)
				fields[index[FieldOptionalData]].Value = display(rest, KindAlnum)
			}
		}

		optional := cs.rule == checkOptionalIfEmpty && isFiller(data)
		valid := ValidateCheckDigit(data, expected, optional)
		checked := !(expected == Filler && optional)
		allValid = allValid && valid

		if cs.field == FieldComposite {
			fields = append(fields, Field{
				Name:    FieldComposite,
				Kind:    KindCheck,
				Raw:     normalized[cs.line][cs.pos : cs.pos+1],
				Value:   string(expected),
				Checked: checked,
				Valid:   valid,
			})
			continue
		}
		f := &fields[index[cs.field]]
		f.Checked = checked
		f.Valid = valid
	}

	return assemble(format, normalized, fields, allValid), true
}

func checkInput(work [][]byte, cs checkSpec) (string, byte) {
	var sb strings.Builder
	for _, s := range cs.over {
		sb.Write(work[s.line][s.start:s.end])
	}
	return sb.String(), work[cs.line][cs.pos]
}

// extendedDocumentNumber handles TD1 document numbers longer than nine
// characters: the number continues in the optional data up to the first
// filler, and the character before that filler is its check digit. The
// digit is only corrected when correct is set, and the correction is kept
// in work so the composite check sees it.
func extendedDocumentNumber(work [][]byte, correct bool) (number string, digit byte, rest string, ok bool) {
	opt := work[0][15:30]
	end := strings.IndexByte(string(opt), Filler)
	if end == -1 {
		end = len(opt)
	}
	if end < 1 {
		return "", 0, "", false
	}
	digit = opt[end-1]
	if r, ok := toDigit[digit]; ok && correct {
		digit = r
		opt[end-1] = r
	}
	number = string(work[0][5:14]) + string(opt[:end-1])
	return number, digit, string(opt[end:]), true
}

func assemble(format Format, lines []string, fields []Field, allValid bool) Result {
	value := func(name string) (string, bool) {
		for _, f := range fields {
			if f.Name == name {
				return f.Value, f.Valid
			}
		}
		return "", true
	}

	r := Result{
		Format:              format,
		Lines:               lines,
		Fields:              fields,
		AllCheckDigitsValid: allValid,
	}

	code, _ := value(FieldDocumentCode)
	r.DocumentCode = code
	if len(code) > 0 {
		r.DocumentType = code[:1]
	}
	if len(code) > 1 {
		r.DocumentSubtype = code[1:]
	}
	r.IssuingState, _ = value(FieldIssuingState)
	r.DocumentNumber, r.DocumentNumberValid = value(FieldDocumentNumber)
	r.Nationality, _ = value(FieldNationality)
	r.BirthDate, r.BirthDateValid = value(FieldBirthDate)
	r.Sex, _ = value(FieldSex)
	r.ExpiryDate, r.ExpiryDateValid = value(FieldExpiryDate)
	r.OptionalData, r.OptionalDataValid = value(FieldOptionalData)
	r.OptionalData2, _ = value(FieldOptionalData2)
	_, r.CompositeValid = value(FieldComposite)

	for _, f := range fields {
		if f.Name == FieldName {
			r.Surname, r.GivenNames = splitName(f.Raw)
			break
		}
	}
	return r
}
