package syntok

import (
	"encoding/binary"
	"fmt"
	"sort"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

// foldRune is the case folding applied to rules and, when a
// folded store runs, to matched input.
func foldRune(r rune) rune {
	return unicode.ToLower(r)
}

// wordDict interns replacement entries into a flat rune deck.
// Entries are deduplicated by content, bucketed on a 64 bit hash.
type wordDict struct {
	deck   []rune
	bounds []uint32
	byHash map[uint64][]int32
}

func runesEqual(a, b []rune) bool {
	if len(a) != len(b) {
		return false
	}
	for i, r := range a {
		if b[i] != r {
			return false
		}
	}
	return true
}

func (d *wordDict) intern(word []rune) int32 {
	if d.byHash == nil {
		d.byHash = make(map[uint64][]int32)
		d.bounds = append(d.bounds, 0)
	}
	h := xxhash.Sum64String(string(word))
	for _, id := range d.byHash[h] {
		if runesEqual(d.deck[d.bounds[id]:d.bounds[id+1]], word) {
			return id
		}
	}
	id := int32(len(d.bounds) - 1)
	d.deck = append(d.deck, word...)
	d.bounds = append(d.bounds, uint32(len(d.deck)))
	d.byHash[h] = append(d.byHash[h], id)
	return id
}

type ruleEntry struct {
	ords     []int32
	keepOrig bool
}

// A RuleSet collects synonym rules for compilation. Add takes
// both sides of a rule as word lists, Build freezes the set into
// the intermediate automaton, which compiles to a double array
// with ToDoubleArray or a matrix with ToMatrix.
type RuleSet struct {
	foldCase bool
	dedup    bool

	rules   map[string]*ruleEntry
	dict    wordDict
	maxSpan int
}

// NewRuleSet creates an empty rule set. With foldCase the rules
// and later the matched input are lower cased, with dedup
// repeated input/replacement pairs are dropped.
func NewRuleSet(foldCase, dedup bool) *RuleSet {
	return &RuleSet{
		foldCase: foldCase,
		dedup:    dedup,
		rules:    make(map[string]*ruleEntry),
	}
}

// Size returns the number of distinct input patterns.
func (rs *RuleSet) Size() int {
	return len(rs.rules)
}

func foldWords(words []string) []string {
	folded := make([]string, len(words))
	for i, w := range words {
		runes := []rune(w)
		for x, r := range runes {
			runes[x] = foldRune(r)
		}
		folded[i] = string(runes)
	}
	return folded
}

func checkWords(side string, words []string) error {
	if len(words) == 0 {
		return fmt.Errorf("syntok: empty %s side", side)
	}
	for _, w := range words {
		if len(w) == 0 {
			return fmt.Errorf("syntok: empty word on %s side", side)
		}
		for _, r := range w {
			if r == wordSep {
				return fmt.Errorf("syntok: word separator in %s word %q", side, w)
			}
		}
	}
	return nil
}

// Add registers a rule mapping the input word sequence to the
// output word sequence. A later match on input injects all
// registered outputs; with keepOrig also the matched tokens
// themselves are kept.
func (rs *RuleSet) Add(input, output []string, keepOrig bool) error {
	if err := checkWords("input", input); err != nil {
		return err
	}
	if err := checkWords("output", output); err != nil {
		return err
	}

	if rs.foldCase {
		input = foldWords(input)
		output = foldWords(output)
	}

	// Intern the full replacement as one deck entry
	var phrase []rune
	for i, w := range output {
		if i > 0 {
			phrase = append(phrase, wordSep)
		}
		phrase = append(phrase, []rune(w)...)
	}
	ord := rs.dict.intern(phrase)

	var key []rune
	for i, w := range input {
		if i > 0 {
			key = append(key, wordSep)
		}
		key = append(key, []rune(w)...)
	}

	e := rs.rules[string(key)]
	if e == nil {
		e = &ruleEntry{}
		rs.rules[string(key)] = e
	}
	e.keepOrig = e.keepOrig || keepOrig

	dup := false
	for _, o := range e.ords {
		if o == ord {
			dup = true
			break
		}
	}
	if !dup || !rs.dedup {
		e.ords = append(e.ords, ord)
	}

	if len(input) > rs.maxSpan {
		rs.maxSpan = len(input)
	}
	if len(output) > rs.maxSpan {
		rs.maxSpan = len(output)
	}

	return nil
}

// Build compiles the collected rules into the intermediate
// automaton.
func (rs *RuleSet) Build() (*Automaton, error) {
	if len(rs.rules) == 0 {
		return nil, fmt.Errorf("syntok: no rules")
	}

	keys := make([]string, 0, len(rs.rules))
	for key := range rs.rules {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	auto := &Automaton{
		ruleData: ruleData{
			sigma:      make(map[rune]int),
			boundary:   boundarySym,
			final:      finalSym,
			words:      rs.dict.deck,
			wordBounds: rs.dict.bounds,
			maxSpan:    rs.maxSpan,
			folded:     rs.foldCase,
		},
		finals: make(map[int]uint32),
	}

	// Collect the character alphabet of all input patterns
	charset := make(map[rune]bool)
	for _, key := range keys {
		for _, r := range key {
			if r != wordSep {
				charset[r] = true
			}
		}
	}
	chars := make([]rune, 0, len(charset))
	for r := range charset {
		chars = append(chars, r)
	}
	sort.Slice(chars, func(i, j int) bool { return chars[i] < chars[j] })

	num := charOffset
	for _, r := range chars {
		if r > 0 && r < 256 {
			auto.sigmaASCII[r] = num
		}
		auto.sigma[r] = num
		num++
	}
	auto.sigmaCount = num - 1

	// Root is state 1, state 0 is the dead state
	auto.transitions = make([]map[int]int, 2)
	auto.transitions[1] = make(map[int]int)

	step := func(s, a int) int {
		if s1, ok := auto.transitions[s][a]; ok {
			return s1
		}
		auto.transitions = append(auto.transitions, make(map[int]int))
		s1 := len(auto.transitions) - 1
		auto.transitions[s][a] = s1
		auto.arcCount++
		return s1
	}

	for _, key := range keys {
		e := rs.rules[key]

		off := uint32(len(auto.outputs))
		code := uint64(len(e.ords)) << 1
		if e.keepOrig {
			code |= 1
		}
		auto.outputs = binary.AppendUvarint(auto.outputs, code)
		for _, ord := range e.ords {
			auto.outputs = binary.AppendUvarint(auto.outputs, uint64(ord))
		}

		s := 1
		for _, r := range key {
			if r == wordSep {
				s = step(s, auto.boundary)
			} else {
				s = step(s, auto.sigma[r])
			}
		}
		auto.finals[s] = off + 1
	}

	auto.stateCount = len(auto.transitions) - 1

	return auto, nil
}
