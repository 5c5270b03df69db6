package syntok

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
)

const MAMAGIC = "SYNMA"

// MatrixSynonymMap is a compiled rule set represented as a full
// transition matrix. Larger than the double array but with a
// trivial transition lookup.
type MatrixSynonymMap struct {
	ruleData
	array      []uint32
	stateCount int
}

// ToMatrix turns the intermediate automaton into a matrix
// representation.
func (auto *Automaton) ToMatrix() *MatrixSynonymMap {

	mat := &MatrixSynonymMap{
		ruleData:   auto.ruleData,
		stateCount: auto.stateCount,
	}

	mat.array = make([]uint32, (auto.stateCount+1)*(auto.sigmaCount+1))

	for s := 1; s <= auto.stateCount; s++ {
		for a, s1 := range auto.transitions[s] {
			mat.array[(a-1)*mat.stateCount+s] = uint32(s1)
		}

		// The accepting cell carries the payload offset
		if off := auto.finals[s]; off != 0 {
			mat.array[(mat.final-1)*mat.stateCount+s] = off
		}
	}

	return mat
}

// Type of the compiled rule store
func (MatrixSynonymMap) Type() string {
	return MAMAGIC
}

// Start returns the root state.
func (mat *MatrixSynonymMap) Start() uint32 {
	return 1
}

// Step walks the transition for a character, 0 if the character
// continues no rule from this state.
func (mat *MatrixSynonymMap) Step(t uint32, r rune) uint32 {
	a := mat.symbol(r)
	if a == 0 {
		return 0
	}
	return mat.array[(a-1)*mat.stateCount+int(t)]
}

// StepBoundary walks the word boundary transition.
func (mat *MatrixSynonymMap) StepBoundary(t uint32) uint32 {
	return mat.array[(mat.boundary-1)*mat.stateCount+int(t)]
}

// Final reports whether the state accepts and returns its
// payload record.
func (mat *MatrixSynonymMap) Final(t uint32) ([]byte, bool) {
	off := mat.array[(mat.final-1)*mat.stateCount+int(t)]
	if off == 0 {
		return nil, false
	}
	return mat.outputs[off-1:], true
}

// Save stores the matrix data in a file.
func (mat *MatrixSynonymMap) Save(file string) (n int64, err error) {
	f, err := os.Create(file)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	gz := gzip.NewWriter(f)
	defer gz.Close()
	n, err = mat.WriteTo(gz)
	if err != nil {
		return n, err
	}
	gz.Flush()
	return n, nil
}

// WriteTo stores the matrix data in an io.Writer.
func (mat *MatrixSynonymMap) WriteTo(w io.Writer) (n int64, err error) {

	wb := bufio.NewWriter(w)
	defer wb.Flush()

	// Store magical header
	all, err := wb.Write([]byte(MAMAGIC))
	if err != nil {
		return int64(all), err
	}

	more, err := mat.ruleData.writeTo(wb, uint32(mat.stateCount))
	if err != nil {
		return int64(all) + more, err
	}
	n = int64(all) + more

	buf := make([]byte, 4)
	for _, cell := range mat.array {
		bo.PutUint32(buf, cell)
		more, err := wb.Write(buf)
		if err != nil {
			return n, err
		}
		n += int64(more)
	}

	return n, nil
}

// LoadMatrixFile reads a matrix represented rule store from a
// file.
func LoadMatrixFile(file string) (*MatrixSynonymMap, error) {
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

	return ParseMatrix(gz)
}

// ParseMatrix reads a matrix represented rule store from an
// io.Reader.
func ParseMatrix(ior io.Reader) (*MatrixSynonymMap, error) {

	mat := &MatrixSynonymMap{}

	r := bufio.NewReader(ior)

	buf := make([]byte, len(MAMAGIC))
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}

	if string(buf) != MAMAGIC {
		return nil, fmt.Errorf("syntok: not a matrix rule file")
	}

	size, err := mat.ruleData.readFrom(r)
	if err != nil {
		return nil, err
	}

	mat.stateCount = int(size)
	arraySize := (mat.stateCount + 1) * (mat.sigmaCount + 1)
	mat.array = make([]uint32, arraySize)

	dataArray, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	if len(dataArray) < arraySize*4 {
		return nil, fmt.Errorf("syntok: not enough bytes read")
	}
	dataArray = dataArray[:arraySize*4]

	t := 0
	for x := 0; x < len(dataArray); x += 4 {
		mat.array[t] = bo.Uint32(dataArray[x : x+4])
		t++
	}

	return mat, nil
}
