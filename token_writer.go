package syntok

import (
	"bufio"
	"io"
	"strconv"
)

type Bits uint8

const (
	TERMS Bits = 1 << iota
	OFFSETS
	POSITIONS
	TYPES

	SIMPLE = TERMS
)

// A TokenWriter renders a token stream line by line, assembled
// from the flags at creation time.
type TokenWriter struct {
	Token     func(t *Token)
	StreamEnd func()
	Flush     func() error
}

// Create a new token writer based on the options
func NewTokenWriter(w io.Writer, flags Bits) *TokenWriter {
	writer := bufio.NewWriter(w)
	posC := -1
	pos := make([]int, 0, 1024)

	tw := &TokenWriter{}

	// One line per token, with offsets and type when requested
	line := func(t *Token) {
		writer.WriteString(t.String())
		if flags&OFFSETS != 0 {
			writer.WriteByte('\t')
			writer.WriteString(strconv.Itoa(t.Start))
			writer.WriteByte('-')
			writer.WriteString(strconv.Itoa(t.End))
		}
		if flags&TYPES != 0 {
			writer.WriteByte('\t')
			writer.WriteString(t.Type)
		}
		writer.WriteByte('\n')
	}

	// Collect positions and maybe tokens
	if flags&POSITIONS != 0 {
		tw.Token = func(t *Token) {
			posC += t.PosIncr
			pos = append(pos, posC)
			if flags&TERMS != 0 {
				line(t)
			}
		}

		// Write tokens only
	} else if flags&TERMS != 0 {
		tw.Token = line

		// Ignore tokens
	} else {
		tw.Token = func(_ *Token) {}
	}

	// Write the collected positions at the end of the stream
	if flags&POSITIONS != 0 {
		tw.StreamEnd = func() {
			if len(pos) > 0 {
				writer.WriteString(strconv.Itoa(pos[0]))
				for _, x := range pos[1:] {
					writer.WriteByte(' ')
					writer.WriteString(strconv.Itoa(x))
				}
			}
			writer.WriteByte('\n')
			posC = -1
			pos = pos[:0]
		}
	} else {
		tw.StreamEnd = func() {
			writer.WriteByte('\n')
		}
	}

	// Flush the writer
	tw.Flush = func() error {
		return writer.Flush()
	}

	return tw
}

// Pipe drains a token stream into the writer.
func Pipe(ts TokenStream, tw *TokenWriter) error {
	for {
		ok, err := ts.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		tw.Token(ts.Token())
	}
	tw.StreamEnd()
	return tw.Flush()
}
