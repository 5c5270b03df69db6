package syntok

// Multi-word synonym rules are compiled into a finite state
// transducer over token characters, with a reserved boundary
// symbol between the words of a pattern. Accepting states point
// into a shared payload section holding the replacement word
// identifiers of all rules ending there.
//
// The serialization of both compiled forms is little endian.

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/klauspost/compress/gzip"
)

const (
	DEBUG   = false
	VERSION = uint16(1)

	// Reserved symbols ahead of the character alphabet.
	boundarySym = 1
	finalSym    = 2
	charOffset  = 3

	// Separator between the words of a multi-word replacement
	// in the word deck. Never part of a word itself.
	wordSep = ' '
)

// Serialization is always little endian
var bo binary.ByteOrder = binary.LittleEndian

// A RuleStore is a compiled synonym rule set. States are walked
// with Step per character and StepBoundary between tokens, with 0
// as the dead state. Final reports whether a state accepts and
// returns the raw payload holding the replacement word ids, to be
// decoded with decodeOutputs. Word resolves an id from a payload
// to its text, with wordSep separating the words of a multi-word
// replacement.
type RuleStore interface {
	Start() uint32
	Step(t uint32, r rune) uint32
	StepBoundary(t uint32) uint32
	Final(t uint32) ([]byte, bool)
	Word(id int32) []rune
	MaxTokenSpan() int
	FoldedCase() bool
	Type() string
}

// ruleData is the alphabet, word deck and payload section shared
// by the intermediate automaton and both compiled forms.
type ruleData struct {
	sigma      map[rune]int
	sigmaASCII [256]int
	sigmaCount int

	// Special symbols in sigma
	boundary int
	final    int

	// Word deck: the texts of all replacement entries,
	// concatenated, with wordBounds[id] marking the start of
	// entry id.
	words      []rune
	wordBounds []uint32

	// Payload section: per accepting state a uvarint coded
	// record of the keep-original flag and the word ids.
	outputs []byte

	maxSpan int
	folded  bool
}

// symbol resolves a character to its symbol id, 0 if the
// character occurs in no rule.
func (rd *ruleData) symbol(r rune) int {
	if r > 0 && r < 256 {
		return rd.sigmaASCII[r]
	}
	return rd.sigma[r]
}

func (rd *ruleData) wordCount() int {
	return len(rd.wordBounds) - 1
}

// Word returns the deck entry for a word id.
func (rd *ruleData) Word(id int32) []rune {
	if id < 0 || int(id) >= rd.wordCount() {
		panic(fmt.Sprintf("syntok: word id %d outside deck of %d entries", id, rd.wordCount()))
	}
	return rd.words[rd.wordBounds[id]:rd.wordBounds[id+1]]
}

// MaxTokenSpan returns the widest rule side in tokens. The
// lookahead of a filter running this store never exceeds it.
func (rd *ruleData) MaxTokenSpan() int {
	return rd.maxSpan
}

// FoldedCase reports whether the rules were case folded when the
// store was built.
func (rd *ruleData) FoldedCase() bool {
	return rd.folded
}

// decodeOutputs unpacks an accepting state's payload record into
// the keep-original flag and the replacement word ids.
func decodeOutputs(payload []byte) (ids []int32, keepOrig bool) {
	code, n := binary.Uvarint(payload)
	if n <= 0 {
		panic("syntok: corrupt payload record")
	}
	payload = payload[n:]
	keepOrig = code&1 != 0
	ids = make([]int32, 0, code>>1)
	for i := uint64(0); i < code>>1; i++ {
		id, n := binary.Uvarint(payload)
		if n <= 0 {
			panic("syntok: corrupt payload record")
		}
		payload = payload[n:]
		ids = append(ids, int32(id))
	}
	return ids, keepOrig
}

// writeTo stores the shared sections in a buffered writer,
// together with the representation specific size value. Called by
// the compiled forms after their magic header.
func (rd *ruleData) writeTo(wb *bufio.Writer, size uint32) (n int64, err error) {

	// Get sigma as a list
	sigmalist := make([]rune, rd.sigmaCount+1)
	for sym, num := range rd.sigma {
		sigmalist[num] = sym
	}

	var folded uint8
	if rd.folded {
		folded = 1
	}

	buf := make([]byte, 27)
	bo.PutUint16(buf[0:2], VERSION)
	bo.PutUint16(buf[2:4], uint16(rd.boundary))
	bo.PutUint16(buf[4:6], uint16(rd.final))
	bo.PutUint16(buf[6:8], uint16(rd.sigmaCount))
	bo.PutUint16(buf[8:10], uint16(rd.maxSpan))
	buf[10] = folded
	bo.PutUint32(buf[11:15], size)
	bo.PutUint32(buf[15:19], uint32(rd.wordCount()))
	bo.PutUint32(buf[19:23], uint32(len(rd.words)))
	bo.PutUint32(buf[23:27], uint32(len(rd.outputs)))
	all, err := wb.Write(buf)
	if err != nil {
		return int64(all), err
	}

	// Write sigma
	for _, sym := range sigmalist[charOffset:] {
		more, err := wb.WriteRune(sym)
		if err != nil {
			return int64(all), err
		}
		all += more
	}

	// Test marker - could be checksum
	more, err := wb.Write([]byte("T"))
	if err != nil {
		return int64(all), err
	}
	all += more

	// Write word deck
	for _, bound := range rd.wordBounds {
		bo.PutUint32(buf[0:4], bound)
		more, err = wb.Write(buf[0:4])
		if err != nil {
			return int64(all), err
		}
		all += more
	}
	for _, sym := range rd.words {
		more, err = wb.WriteRune(sym)
		if err != nil {
			return int64(all), err
		}
		all += more
	}

	// Write payload section
	more, err = wb.Write(rd.outputs)
	if err != nil {
		return int64(all), err
	}
	all += more

	return int64(all), nil
}

// readFrom restores the shared sections from a buffered reader
// positioned after the magic header and returns the
// representation specific size value.
func (rd *ruleData) readFrom(r *bufio.Reader) (size uint32, err error) {
	rd.sigma = make(map[rune]int)

	buf := make([]byte, 27)
	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, err
	}

	if version := bo.Uint16(buf[0:2]); version != VERSION {
		return 0, fmt.Errorf("syntok: version %d not compatible", version)
	}

	rd.boundary = int(bo.Uint16(buf[2:4]))
	rd.final = int(bo.Uint16(buf[4:6]))
	rd.sigmaCount = int(bo.Uint16(buf[6:8]))
	rd.maxSpan = int(bo.Uint16(buf[8:10]))
	rd.folded = buf[10] == 1
	size = bo.Uint32(buf[11:15])
	wordCount := int(bo.Uint32(buf[15:19]))
	deckLen := int(bo.Uint32(buf[19:23]))
	outputsLen := int(bo.Uint32(buf[23:27]))

	for num := charOffset; num <= rd.sigmaCount; num++ {
		sym, _, err := r.ReadRune()
		if err != nil {
			return 0, err
		}
		if sym > 0 && sym < 256 {
			rd.sigmaASCII[sym] = num
		}
		rd.sigma[sym] = num
	}

	if _, err := io.ReadFull(r, buf[0:1]); err != nil {
		return 0, err
	}
	if buf[0] != 'T' {
		return 0, fmt.Errorf("syntok: missing section marker")
	}

	rd.wordBounds = make([]uint32, wordCount+1)
	for x := 0; x <= wordCount; x++ {
		if _, err := io.ReadFull(r, buf[0:4]); err != nil {
			return 0, err
		}
		rd.wordBounds[x] = bo.Uint32(buf[0:4])
	}

	rd.words = make([]rune, deckLen)
	for x := 0; x < deckLen; x++ {
		sym, _, err := r.ReadRune()
		if err != nil {
			return 0, err
		}
		rd.words[x] = sym
	}

	rd.outputs = make([]byte, outputsLen)
	if _, err := io.ReadFull(r, rd.outputs); err != nil {
		return 0, err
	}

	return size, nil
}

// Automaton is the intermediate representation of a compiled rule
// set, a trie over symbols with accepting states pointing into
// the payload section.
type Automaton struct {
	ruleData
	arcCount    int
	stateCount  int
	transitions []map[int]int
	finals      map[int]uint32
}

// getSet returns the sorted outgoing symbols of a state,
// including the final symbol for accepting states.
func (auto *Automaton) getSet(s int, A *[]int) {
	for a := range auto.transitions[s] {
		*A = append(*A, a)
	}
	if auto.finals[s] != 0 {
		*A = append(*A, auto.final)
	}

	// Keeps the layout deterministic
	sort.Ints(*A)
}

// LoadRuleFile reads a compiled rule store from a file, with the
// representation determined by the file's magic header.
func LoadRuleFile(file string) (RuleStore, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer gz.Close()

	r := bufio.NewReader(gz)

	magic, err := r.Peek(5)
	if err != nil {
		return nil, err
	}

	if string(magic) == MAMAGIC {
		return ParseMatrix(r)
	} else if string(magic) == DAMAGIC {
		return ParseSynMap(r)
	}

	return nil, fmt.Errorf("syntok: neither a matrix nor a double array rule file")
}
