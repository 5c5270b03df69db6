package syntok

// The compiled rule transducer as double array FSA, following
// Mizobuchi et al (2000). Unlike the textbook construction no
// state merging happens, the rule set is a plain trie, so base
// and check carry no flag bits and accepting states keep their
// payload offset in the base cell of the final transition.

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog/log"
)

const DAMAGIC = "SYNDA"

type mapping struct {
	source int
	target uint32
}

type bc struct {
	base  uint32
	check uint32
}

// SynonymMap is a compiled rule set represented as a double
// array FSA.
type SynonymMap struct {
	ruleData
	array      []bc
	maxSize    int
	transCount int
}

// ToDoubleArray turns the intermediate automaton into a double
// array representation.
//
// This is based on Mizobuchi et al (2000), p.128
func (auto *Automaton) ToDoubleArray() *SynonymMap {

	dat := &SynonymMap{
		ruleData:   auto.ruleData,
		transCount: -1,
	}

	dat.resize(dat.sigmaCount)

	mark := 0
	size := 0
	var base uint32
	var t, t1 uint32

	// Create a mapping from the trie states to the
	// double array states
	table := make([]*mapping, auto.arcCount+1)

	table[size] = &mapping{source: 1, target: 1}
	size++

	// Allocate space for the outgoing symbol range
	A := make([]int, 0, auto.sigmaCount)

	for mark < size {
		s := table[mark].source
		t = table[mark].target
		mark++

		A = A[:0]
		auto.getSet(s, &A)

		// Set base to the first free slot in the double array
		base = dat.xCheckSkipNiu(A)
		dat.array[t].base = base

		// Iterate over all outgoing symbols
		for _, a := range A {

			if a != auto.final {

				// Aka g(s, a)
				s1 := auto.transitions[s][a]

				// Store the transition
				t1 = base + uint32(a)
				dat.array[t1].check = t

				if dat.maxSize < int(t1) {
					dat.maxSize = int(t1)
				}

				if DEBUG {
					log.Debug().Msgf("translate transition %d->%d (%d) to %d->%d", s, s1, a, t, t1)
				}

				table[size] = &mapping{source: s1, target: t1}
				size++
			} else {

				// Store the payload offset at the final transition
				t1 = base + uint32(dat.final)
				dat.array[t1].check = t
				dat.array[t1].base = auto.finals[s]

				if dat.maxSize < int(t1) {
					dat.maxSize = int(t1)
				}
			}
		}
	}

	dat.array = dat.array[:dat.maxSize+1]
	return dat
}

// Type of the compiled rule store
func (SynonymMap) Type() string {
	return DAMAGIC
}

// Resize double array when necessary
func (dat *SynonymMap) resize(l int) {
	if len(dat.array) <= l {
		dat.array = append(dat.array, make([]bc, l)...)
	}
}

// Set the base value for the slots covered by symbols to the
// first fitting position in the double array.
func (dat *SynonymMap) xCheck(symbols []int) uint32 {

	// Start at the first entry of the double array list
	base := uint32(1)

OVERLAP:
	// Resize the array to the full symbol range if necessary
	dat.resize(int(base) + dat.sigmaCount)
	for _, a := range symbols {
		if dat.array[int(base)+a].check != 0 {
			base++
			goto OVERLAP
		}
	}
	return base
}

// This is an implementation of xCheck with the skip-improvement
// proposed by Morita et al. (2001) for higher outdegrees as
// proposed by Niu et al. (2013)
func (dat *SynonymMap) xCheckSkipNiu(symbols []int) uint32 {

	// Start at the first entry of the double array list
	base := uint32(1)

	// Or skip the first few entries
	if len(symbols) >= 3 {
		base = uint32(math.Abs(float64(dat.maxSize-1)*.9)) + 1
	}

OVERLAP:
	// Resize the array to the full symbol range if necessary
	dat.resize(int(base) + dat.sigmaCount + 1)
	for _, a := range symbols {
		if dat.array[int(base)+a].check != 0 {
			base++
			goto OVERLAP
		}
	}
	return base
}

// Start returns the root state.
func (dat *SynonymMap) Start() uint32 {
	return 1
}

// Step walks the transition for a character, 0 if the character
// continues no rule from this state.
func (dat *SynonymMap) Step(t uint32, r rune) uint32 {
	a := dat.symbol(r)
	if a == 0 {
		return 0
	}
	t1 := dat.array[t].base + uint32(a)
	if int(t1) >= len(dat.array) || dat.array[t1].check != t {
		return 0
	}
	return t1
}

// StepBoundary walks the word boundary transition.
func (dat *SynonymMap) StepBoundary(t uint32) uint32 {
	t1 := dat.array[t].base + uint32(dat.boundary)
	if int(t1) >= len(dat.array) || dat.array[t1].check != t {
		return 0
	}
	return t1
}

// Final reports whether the state accepts and returns its
// payload record.
func (dat *SynonymMap) Final(t uint32) ([]byte, bool) {
	t1 := dat.array[t].base + uint32(dat.final)
	if int(t1) >= len(dat.array) || dat.array[t1].check != t {
		return nil, false
	}
	off := dat.array[t1].base
	if off == 0 {
		panic("syntok: accepting state without payload")
	}
	return dat.outputs[off-1:], true
}

// TransCount returns the number of transitions in the double
// array.
func (dat *SynonymMap) TransCount() int {
	if dat.transCount >= 0 {
		return dat.transCount
	}

	dat.transCount = 0
	for x := 1; x < len(dat.array); x++ {
		if dat.array[x].check != 0 {
			dat.transCount++
		}
	}
	return dat.transCount
}

// LoadFactor returns the load factor of the double array in
// percent.
func (dat *SynonymMap) LoadFactor() float64 {
	return float64(dat.TransCount()) / float64(len(dat.array)) * 100
}

// Save stores the double array data in a file.
func (dat *SynonymMap) Save(file string) (n int64, err error) {
	f, err := os.Create(file)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	gz := gzip.NewWriter(f)
	defer gz.Close()
	n, err = dat.WriteTo(gz)
	if err != nil {
		return n, err
	}
	gz.Flush()
	return n, nil
}

// WriteTo stores the double array data in an io.Writer.
func (dat *SynonymMap) WriteTo(w io.Writer) (n int64, err error) {

	wb := bufio.NewWriter(w)
	defer wb.Flush()

	// Store magical header
	all, err := wb.Write([]byte(DAMAGIC))
	if err != nil {
		return int64(all), err
	}

	more, err := dat.ruleData.writeTo(wb, uint32(len(dat.array)))
	if err != nil {
		return int64(all) + more, err
	}
	n = int64(all) + more

	buf := make([]byte, 8)
	for _, bc := range dat.array {
		bo.PutUint32(buf[0:4], bc.base)
		bo.PutUint32(buf[4:8], bc.check)
		more, err := wb.Write(buf)
		if err != nil {
			return n, err
		}
		n += int64(more)
	}

	return n, nil
}

// LoadSynMapFile reads a double array represented rule store
// from a file.
func LoadSynMapFile(file string) (*SynonymMap, error) {
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

	return ParseSynMap(gz)
}

// ParseSynMap reads a double array represented rule store from
// an io.Reader.
func ParseSynMap(ior io.Reader) (*SynonymMap, error) {

	dat := &SynonymMap{
		transCount: -1,
	}

	r := bufio.NewReader(ior)

	buf := make([]byte, len(DAMAGIC))
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}

	if string(buf) != DAMAGIC {
		return nil, fmt.Errorf("syntok: not a double array rule file")
	}

	size, err := dat.ruleData.readFrom(r)
	if err != nil {
		return nil, err
	}

	dat.maxSize = int(size) - 1
	dat.array = make([]bc, size)

	dataArray, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	if len(dataArray) < int(size)*8 {
		return nil, fmt.Errorf("syntok: not enough bytes read")
	}
	dataArray = dataArray[:int(size)*8]

	t := 0
	for x := 0; x < len(dataArray); x += 8 {
		dat.array[t].base = bo.Uint32(dataArray[x : x+4])
		dat.array[t].check = bo.Uint32(dataArray[x+4 : x+8])
		t++
	}

	return dat, nil
}
