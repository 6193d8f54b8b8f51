package mrz

// span addresses characters [start, end) of one MRZ line.
type span struct {
	line, start, end int
}

type fieldSpec struct {
	name string
	kind Kind
	at   span
}

type checkRule int

const (
	checkRequired checkRule = iota
	// checkOptionalIfEmpty accepts a filler when the covered data is all filler.
	checkOptionalIfEmpty
)

// checkSpec is a check digit at (line, pos) computed over the concatenation
// of the covered spans.
type checkSpec struct {
	field string
	line  int
	pos   int
	over  []span
	rule  checkRule
}

type layout struct {
	fields []fieldSpec
	checks []checkSpec
}

const (
	FieldDocumentCode   = "document_code"
	FieldIssuingState   = "issuing_state"
	FieldDocumentNumber = "document_number"
	FieldOptionalData   = "optional_data"
	FieldOptionalData2  = "optional_data_2"
	FieldBirthDate      = "birth_date"
	FieldSex            = "sex"
	FieldExpiryDate     = "expiry_date"
	FieldNationality    = "nationality"
	FieldName           = "name"
	FieldComposite      = "composite"
)

// layouts holds the fixed field positions of every format.
var layouts = [...]layout{
	TD1: {
		fields: []fieldSpec{
			{FieldDocumentCode, KindAlpha, span{0, 0, 2}},
			{FieldIssuingState, KindAlpha, span{0, 2, 5}},
			{FieldDocumentNumber, KindAlnum, span{0, 5, 14}},
			{FieldOptionalData, KindAlnum, span{0, 15, 30}},
			{FieldBirthDate, KindDate, span{1, 0, 6}},
			{FieldSex, KindSex, span{1, 7, 8}},
			{FieldExpiryDate, KindDate, span{1, 8, 14}},
			{FieldNationality, KindAlpha, span{1, 15, 18}},
			{FieldOptionalData2, KindAlnum, span{1, 18, 29}},
			{FieldName, KindName, span{2, 0, 30}},
		},
		checks: []checkSpec{
			{FieldDocumentNumber, 0, 14, []span{{0, 5, 14}}, checkRequired},
			{FieldBirthDate, 1, 6, []span{{1, 0, 6}}, checkRequired},
			{FieldExpiryDate, 1, 14, []span{{1, 8, 14}}, checkRequired},
			{FieldComposite, 1, 29, []span{{0, 5, 30}, {1, 0, 7}, {1, 8, 15}, {1, 18, 29}}, checkRequired},
		},
	},
	TD2: {
		fields: []fieldSpec{
			{FieldDocumentCode, KindAlpha, span{0, 0, 2}},
			{FieldIssuingState, KindAlpha, span{0, 2, 5}},
			{FieldName, KindName, span{0, 5, 36}},
			{FieldDocumentNumber, KindAlnum, span{1, 0, 9}},
			{FieldNationality, KindAlpha, span{1, 10, 13}},
			{FieldBirthDate, KindDate, span{1, 13, 19}},
			{FieldSex, KindSex, span{1, 20, 21}},
			{FieldExpiryDate, KindDate, span{1, 21, 27}},
			{FieldOptionalData, KindAlnum, span{1, 28, 35}},
		},
		checks: []checkSpec{
			{FieldDocumentNumber, 1, 9, []span{{1, 0, 9}}, checkRequired},
			{FieldBirthDate, 1, 19, []span{{1, 13, 19}}, checkRequired},
			{FieldExpiryDate, 1, 27, []span{{1, 21, 27}}, checkRequired},
			{FieldComposite, 1, 35, []span{{1, 0, 10}, {1, 13, 20}, {1, 21, 35}}, checkRequired},
		},
	},
	TD3: {
		fields: []fieldSpec{
			{FieldDocumentCode, KindAlpha, span{0, 0, 2}},
			{FieldIssuingState, KindAlpha, span{0, 2, 5}},
			{FieldName, KindName, span{0, 5, 44}},
			{FieldDocumentNumber, KindAlnum, span{1, 0, 9}},
			{FieldNationality, KindAlpha, span{1, 10, 13}},
			{FieldBirthDate, KindDate, span{1, 13, 19}},
			{FieldSex, KindSex, span{1, 20, 21}},
			{FieldExpiryDate, KindDate, span{1, 21, 27}},
			{FieldOptionalData, KindAlnum, span{1, 28, 42}},
		},
		checks: []checkSpec{
			{FieldDocumentNumber, 1, 9, []span{{1, 0, 9}}, checkRequired},
			{FieldBirthDate, 1, 19, []span{{1, 13, 19}}, checkRequired},
			{FieldExpiryDate, 1, 27, []span{{1, 21, 27}}, checkRequired},
			{FieldOptionalData, 1, 42, []span{{1, 28, 42}}, checkOptionalIfEmpty},
			{FieldComposite, 1, 43, []span{{1, 0, 10}, {1, 13, 20}, {1, 21, 43}}, checkRequired},
		},
	},
	MRVA: {
		fields: []fieldSpec{
			{FieldDocumentCode, KindAlpha, span{0, 0, 2}},
			{FieldIssuingState, KindAlpha, span{0, 2, 5}},
			{FieldName, KindName, span{0, 5, 44}},
			{FieldDocumentNumber, KindAlnum, span{1, 0, 9}},
			{FieldNationality, KindAlpha, span{1, 10, 13}},
			{FieldBirthDate, KindDate, span{1, 13, 19}},
			{FieldSex, KindSex, span{1, 20, 21}},
			{FieldExpiryDate, KindDate, span{1, 21, 27}},
			{FieldOptionalData, KindAlnum, span{1, 28, 44}},
		},
		checks: []checkSpec{
			{FieldDocumentNumber, 1, 9, []span{{1, 0, 9}}, checkRequired},
			{FieldBirthDate, 1, 19, []span{{1, 13, 19}}, checkRequired},
			{FieldExpiryDate, 1, 27, []span{{1, 21, 27}}, checkRequired},
		},
	},
	MRVB: {
		fields: []fieldSpec{
			{FieldDocumentCode, KindAlpha, span{0, 0, 2}},
			{FieldIssuingState, KindAlpha, span{0, 2, 5}},
			{FieldName, KindName, span{0, 5, 36}},
			{FieldDocumentNumber, KindAlnum, span{1, 0, 9}},
			{FieldNationality, KindAlpha, span{1, 10, 13}},
			{FieldBirthDate, KindDate, span{1, 13, 19}},
			{FieldSex, KindSex, span{1, 20, 21}},
			{FieldExpiryDate, KindDate, span{1, 21, 27}},
			{FieldOptionalData, KindAlnum, span{1, 28, 36}},
		},
		checks: []checkSpec{
			{FieldDocumentNumber, 1, 9, []span{{1, 0, 9}}, checkRequired},
			{FieldBirthDate, 1, 19, []span{{1, 13, 19}}, checkRequired},
			{FieldExpiryDate, 1, 27, []span{{1, 21, 27}}, checkRequired},
		},
	},
}

func layoutFor(f Format) (layout, bool) {
	if !f.valid() {
		return layout{}, false
	}
	return layouts[f], true
}
