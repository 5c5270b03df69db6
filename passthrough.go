package syntok

import (
	"encoding/binary"
	"fmt"
	"math"
)

// PositionFilter flattens position increments: the first token
// keeps its increment, every later one gets the configured
// value. With 0 all tokens of a stream stack at one position,
// which keeps exhaustive query expansions from blowing up
// phrase positions.
type PositionFilter struct {
	input      TokenStream
	incr       int
	positioned bool
}

// NewPositionFilter wraps a token stream, reassigning the
// position increment of every token after the first.
func NewPositionFilter(input TokenStream, incr int) (*PositionFilter, error) {
	if input == nil {
		return nil, fmt.Errorf("syntok: nil token source")
	}
	if incr < 0 {
		return nil, fmt.Errorf("syntok: negative position increment %d", incr)
	}
	return &PositionFilter{input: input, incr: incr}, nil
}

func (pf *PositionFilter) Next() (bool, error) {
	ok, err := pf.input.Next()
	if !ok || err != nil {
		return ok, err
	}
	if pf.positioned {
		pf.input.Token().PosIncr = pf.incr
	} else {
		pf.positioned = true
	}
	return true, nil
}

func (pf *PositionFilter) Token() *Token {
	return pf.input.Token()
}

func (pf *PositionFilter) Reset() error {
	pf.positioned = false
	return pf.input.Reset()
}

// EncodeFloatPayload renders a float32 as big endian payload
// bytes.
func EncodeFloatPayload(f float32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, math.Float32bits(f))
	return b
}

// DecodeFloatPayload reads a payload written by
// EncodeFloatPayload.
func DecodeFloatPayload(b []byte) float32 {
	return math.Float32frombits(binary.BigEndian.Uint32(b))
}

// NumericPayloadFilter attaches a fixed numeric payload to every
// token of one type. The payload slice is shared between tokens.
type NumericPayloadFilter struct {
	input   TokenStream
	payload []byte
	match   string
}

// NewNumericPayloadFilter wraps a token stream, attaching the
// encoded value to all tokens of type typeMatch.
func NewNumericPayloadFilter(input TokenStream, value float32, typeMatch string) (*NumericPayloadFilter, error) {
	if input == nil {
		return nil, fmt.Errorf("syntok: nil token source")
	}
	if typeMatch == "" {
		return nil, fmt.Errorf("syntok: empty token type")
	}
	return &NumericPayloadFilter{
		input:   input,
		payload: EncodeFloatPayload(value),
		match:   typeMatch,
	}, nil
}

func (nf *NumericPayloadFilter) Next() (bool, error) {
	ok, err := nf.input.Next()
	if !ok || err != nil {
		return ok, err
	}
	tok := nf.input.Token()
	if tok.Type == nf.match {
		tok.Payload = nf.payload
	}
	return true, nil
}

func (nf *NumericPayloadFilter) Token() *Token {
	return nf.input.Token()
}

func (nf *NumericPayloadFilter) Reset() error {
	return nf.input.Reset()
}

// TypeAsPayloadFilter copies every token's type into its
// payload, making the type visible to consumers that only see
// payload bytes.
type TypeAsPayloadFilter struct {
	input TokenStream
}

// NewTypeAsPayloadFilter wraps a token stream.
func NewTypeAsPayloadFilter(input TokenStream) (*TypeAsPayloadFilter, error) {
	if input == nil {
		return nil, fmt.Errorf("syntok: nil token source")
	}
	return &TypeAsPayloadFilter{input: input}, nil
}

func (tf *TypeAsPayloadFilter) Next() (bool, error) {
	ok, err := tf.input.Next()
	if !ok || err != nil {
		return ok, err
	}
	tok := tf.input.Token()
	if len(tok.Type) > 0 {
		tok.Payload = []byte(tok.Type)
	}
	return true, nil
}

func (tf *TypeAsPayloadFilter) Token() *Token {
	return tf.input.Token()
}

func (tf *TypeAsPayloadFilter) Reset() error {
	return tf.input.Reset()
}
