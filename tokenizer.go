package syntok

import (
	"unicode"
	"unicode/utf8"
)

// A WordTokenizer splits text into maximal runs of letters and
// digits. Offsets are byte positions into the original string, so
// they stay valid for slicing multi-byte input.
type WordTokenizer struct {
	text string
	pos  int
	tok  Token
}

// NewWordTokenizer returns a tokenizer over text.
func NewWordTokenizer(text string) *WordTokenizer {
	z := &WordTokenizer{}
	z.SetText(text)
	return z
}

// SetText replaces the input text and rewinds the tokenizer.
func (z *WordTokenizer) SetText(text string) {
	z.text = text
	z.pos = 0
	z.tok.Clear()
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// Next scans for the next word.
func (z *WordTokenizer) Next() (bool, error) {
	for z.pos < len(z.text) {
		r, w := utf8.DecodeRuneInString(z.text[z.pos:])
		if isWordRune(r) {
			break
		}
		z.pos += w
	}
	if z.pos == len(z.text) {
		return false, nil
	}

	z.tok.Clear()
	z.tok.Start = z.pos
	for z.pos < len(z.text) {
		r, w := utf8.DecodeRuneInString(z.text[z.pos:])
		if !isWordRune(r) {
			break
		}
		z.tok.Term = append(z.tok.Term, r)
		z.pos += w
	}
	z.tok.End = z.pos
	return true, nil
}

// Token returns the tokenizer's reusable token value.
func (z *WordTokenizer) Token() *Token {
	return &z.tok
}

// Reset rewinds to the start of the current text.
func (z *WordTokenizer) Reset() error {
	z.pos = 0
	z.tok.Clear()
	return nil
}
