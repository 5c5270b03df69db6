package syntok

// Token types. Tokens produced by the tokenizer carry TypeWord,
// tokens injected by the synonym filter carry TypeSynonym.
const (
	TypeWord    = "word"
	TypeSynonym = "SYNONYM"
)

// A Token is one unit of analyzed text together with its
// positional bookkeeping. Streams own exactly one Token value
// and overwrite it on every advance, so consumers that need a
// token beyond the next call have to Clone it.
type Token struct {

	// Term is the token text. The slice is reused between
	// tokens and only valid until the stream advances.
	Term []rune

	// Start and End are byte offsets into the original text.
	Start int
	End   int

	// Type is a free-form label, TypeWord for plain text tokens.
	Type string

	// PosIncr is the position gap to the previous token. 1 for
	// adjacent tokens, 0 for tokens stacked at the same position.
	PosIncr int

	// PosLen is the number of positions the token spans.
	PosLen int

	// Payload is opaque per-token metadata, nil when unset.
	Payload []byte
}

// Clear resets the token to its defaults, reusing the term buffer.
func (t *Token) Clear() {
	t.Term = t.Term[:0]
	t.Start = 0
	t.End = 0
	t.Type = TypeWord
	t.PosIncr = 1
	t.PosLen = 1
	t.Payload = nil
}

// CopyFrom overwrites the token with a deep copy of src.
func (t *Token) CopyFrom(src *Token) {
	t.Term = append(t.Term[:0], src.Term...)
	t.Start = src.Start
	t.End = src.End
	t.Type = src.Type
	t.PosIncr = src.PosIncr
	t.PosLen = src.PosLen
	if src.Payload != nil {
		t.Payload = append(t.Payload[:0], src.Payload...)
	} else {
		t.Payload = nil
	}
}

// Clone returns a deep copy of the token.
func (t *Token) Clone() *Token {
	c := &Token{}
	c.CopyFrom(t)
	return c
}

// String returns the term text.
func (t *Token) String() string {
	return string(t.Term)
}

// A TokenStream produces tokens one at a time. Next advances to
// the next token and reports whether one is available; any error
// from layers below is passed up unchanged. Token returns the
// stream's single reusable token value, only valid after a
// successful Next and until the following call. Reset rewinds the
// stream so it can be run again from the start.
type TokenStream interface {
	Next() (bool, error)
	Token() *Token
	Reset() error
}
