package syntok

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// cannedStream plays a fixed token script and can fail at a
// configured index.
type cannedStream struct {
	tokens []Token
	failAt int
	upto   int
	tok    Token
}

func canned(tokens ...Token) *cannedStream {
	return &cannedStream{tokens: tokens, failAt: -1}
}

func (c *cannedStream) Next() (bool, error) {
	if c.failAt >= 0 && c.upto == c.failAt {
		return false, fmt.Errorf("canned failure at %d", c.failAt)
	}
	if c.upto >= len(c.tokens) {
		return false, nil
	}
	c.tok.CopyFrom(&c.tokens[c.upto])
	c.upto++
	return true, nil
}

func (c *cannedStream) Token() *Token {
	return &c.tok
}

func (c *cannedStream) Reset() error {
	c.upto = 0
	c.tok.Clear()
	return nil
}

func tk(term string, start, end, posIncr int) Token {
	return Token{
		Term:    []rune(term),
		Start:   start,
		End:     end,
		Type:    TypeWord,
		PosIncr: posIncr,
		PosLen:  1,
	}
}

type trule struct {
	in   string
	out  string
	keep bool
}

func buildAuto(t *testing.T, fold bool, rules ...trule) *Automaton {
	t.Helper()
	rs := NewRuleSet(fold, true)
	for _, r := range rules {
		if err := rs.Add(strings.Fields(r.in), strings.Fields(r.out), r.keep); err != nil {
			t.Fatal(err)
		}
	}
	auto, err := rs.Build()
	if err != nil {
		t.Fatal(err)
	}
	return auto
}

// bothStores compiles the rules into both representations, so
// scenarios run against each.
func bothStores(t *testing.T, rules ...trule) []RuleStore {
	t.Helper()
	auto := buildAuto(t, false, rules...)
	return []RuleStore{auto.ToDoubleArray(), auto.ToMatrix()}
}

func drain(ts TokenStream) ([]Token, error) {
	var out []Token
	for {
		ok, err := ts.Next()
		if err != nil {
			return out, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, *ts.Token().Clone())
	}
}

func terms(tokens []Token) []string {
	out := make([]string, len(tokens))
	for i, tok := range tokens {
		out[i] = tok.String()
	}
	return out
}

func incrs(tokens []Token) []int {
	out := make([]int, len(tokens))
	for i, tok := range tokens {
		out[i] = tok.PosIncr
	}
	return out
}

func types(tokens []Token) []string {
	out := make([]string, len(tokens))
	for i, tok := range tokens {
		out[i] = tok.Type
	}
	return out
}

func TestFilterSingleWordMatch(t *testing.T) {
	assert := assert.New(t)

	for _, rules := range bothStores(t, trule{in: "z", out: "a"}) {
		f, err := NewSynonymFilter(canned(
			tk("x", 0, 1, 1),
			tk("z", 2, 3, 1),
			tk("y", 4, 5, 1),
		), rules)
		assert.Nil(err)

		tokens, err := drain(f)
		assert.Nil(err)
		assert.Equal([]string{"x", "a", "y"}, terms(tokens))
		assert.Equal([]string{TypeWord, TypeSynonym, TypeWord}, types(tokens))
		assert.Equal([]int{1, 1, 1}, incrs(tokens))

		// The replacement covers the matched token
		assert.Equal(2, tokens[1].Start)
		assert.Equal(3, tokens[1].End)
		assert.Equal(1, tokens[1].PosLen)
	}
}

func TestFilterLongestMatchWins(t *testing.T) {
	assert := assert.New(t)

	for _, rules := range bothStores(t,
		trule{in: "a", out: "x"},
		trule{in: "a b", out: "y"},
		trule{in: "b c d", out: "z"},
	) {
		f, err := NewSynonymFilter(canned(
			tk("a", 0, 1, 1),
			tk("b", 2, 3, 1),
			tk("c", 4, 5, 1),
			tk("d", 6, 7, 1),
			tk("e", 8, 9, 1),
		), rules)
		assert.Nil(err)

		tokens, err := drain(f)
		assert.Nil(err)

		// a b wins over a alone, and b c d never applies since
		// b is already consumed
		assert.Equal([]string{"y", "c", "d", "e"}, terms(tokens))
		assert.Equal([]int{1, 1, 1, 1}, incrs(tokens))
		assert.Equal(0, tokens[0].Start)
		assert.Equal(3, tokens[0].End)
		assert.Equal(TypeSynonym, tokens[0].Type)
	}
}

func TestFilterKeepOriginal(t *testing.T) {
	assert := assert.New(t)

	for _, rules := range bothStores(t, trule{in: "x y", out: "z", keep: true}) {
		f, err := NewSynonymFilter(canned(
			tk("x", 0, 1, 1),
			tk("y", 2, 3, 1),
			tk("w", 4, 5, 1),
		), rules)
		assert.Nil(err)

		tokens, err := drain(f)
		assert.Nil(err)
		assert.Equal([]string{"x", "z", "y", "w"}, terms(tokens))

		// z stacks on x and spans both matched positions
		assert.Equal([]int{1, 0, 1, 1}, incrs(tokens))
		assert.Equal(2, tokens[1].PosLen)
		assert.Equal(0, tokens[1].Start)
		assert.Equal(3, tokens[1].End)
		assert.Equal([]string{TypeWord, TypeSynonym, TypeWord, TypeWord}, types(tokens))
	}
}

func TestFilterMultiWordOutput(t *testing.T) {
	assert := assert.New(t)

	for _, rules := range bothStores(t, trule{in: "wifi", out: "wireless fidelity", keep: true}) {
		f, err := NewSynonymFilter(canned(
			tk("wifi", 0, 4, 1),
			tk("network", 5, 12, 1),
		), rules)
		assert.Nil(err)

		tokens, err := drain(f)
		assert.Nil(err)
		assert.Equal([]string{"wifi", "wireless", "network", "fidelity"}, terms(tokens))
		assert.Equal([]int{1, 0, 1, 0}, incrs(tokens))

		// The second replacement word overlaps the following
		// input token and inherits its offsets
		assert.Equal(0, tokens[1].Start)
		assert.Equal(4, tokens[1].End)
		assert.Equal(5, tokens[3].Start)
		assert.Equal(12, tokens[3].End)
	}
}

func TestFilterTrailingOutputs(t *testing.T) {
	assert := assert.New(t)

	for _, rules := range bothStores(t, trule{in: "z", out: "a b c"}) {
		f, err := NewSynonymFilter(canned(
			tk("u", 0, 1, 1),
			tk("z", 2, 3, 1),
		), rules)
		assert.Nil(err)

		tokens, err := drain(f)
		assert.Nil(err)

		// Replacement words beyond the end of the stream are
		// flushed on their own positions, anchored at the last
		// input token's offsets.
		assert.Equal([]string{"u", "a", "b", "c"}, terms(tokens))
		assert.Equal([]int{1, 1, 1, 1}, incrs(tokens))
		for _, tok := range tokens[1:] {
			assert.Equal(2, tok.Start)
			assert.Equal(3, tok.End)
			assert.Equal(TypeSynonym, tok.Type)
			assert.Equal(1, tok.PosLen)
		}
	}
}

func TestFilterStackedTokenNeverStartsMatch(t *testing.T) {
	assert := assert.New(t)

	for _, rules := range bothStores(t, trule{in: "big apple", out: "nyc"}) {
		f, err := NewSynonymFilter(canned(
			tk("big", 0, 3, 1),
			tk("apple", 4, 9, 1),
			tk("fuji", 4, 9, 0),
			tk("pie", 10, 13, 1),
		), rules)
		assert.Nil(err)

		tokens, err := drain(f)
		assert.Nil(err)

		// The stacked token survives the match on its position
		assert.Equal([]string{"nyc", "fuji", "pie"}, terms(tokens))
		assert.Equal([]int{1, 0, 1}, incrs(tokens))
	}
}

func TestFilterStackedTokenNeverExtendsMatch(t *testing.T) {
	assert := assert.New(t)

	for _, rules := range bothStores(t, trule{in: "apple pie", out: "dessert"}) {
		f, err := NewSynonymFilter(canned(
			tk("apple", 0, 5, 1),
			tk("fuji", 0, 5, 0),
			tk("pie", 6, 9, 1),
		), rules)
		assert.Nil(err)

		tokens, err := drain(f)
		assert.Nil(err)

		// fuji blocks the walk across apple pie, nothing matches
		assert.Equal([]string{"apple", "fuji", "pie"}, terms(tokens))
		assert.Equal([]int{1, 0, 1}, incrs(tokens))
		assert.Equal([]string{TypeWord, TypeWord, TypeWord}, types(tokens))
	}
}

func TestFilterMultipleOutputs(t *testing.T) {
	assert := assert.New(t)

	for _, rules := range bothStores(t,
		trule{in: "usa", out: "united states"},
		trule{in: "usa", out: "america"},
	) {
		f, err := NewSynonymFilter(canned(
			tk("usa", 0, 3, 1),
		), rules)
		assert.Nil(err)

		tokens, err := drain(f)
		assert.Nil(err)

		// Both replacements start at the match position in rule
		// order, the second word of the first spills over
		assert.Equal([]string{"united", "america", "states"}, terms(tokens))
		assert.Equal([]int{1, 0, 1}, incrs(tokens))
	}
}

func TestFilterPassThroughAvoidsCapture(t *testing.T) {
	assert := assert.New(t)

	auto := buildAuto(t, false, trule{in: "q", out: "r"})
	f, err := NewSynonymFilter(canned(
		tk("a", 0, 1, 1),
		tk("b", 2, 3, 1),
		tk("c", 4, 5, 1),
	), auto.ToDoubleArray())
	assert.Nil(err)

	tokens, err := drain(f)
	assert.Nil(err)
	assert.Equal([]string{"a", "b", "c"}, terms(tokens))

	// Nothing needed lookahead, so nothing was snapshotted
	assert.Equal(0, f.Captures())
}

func TestFilterCapturesOnLookahead(t *testing.T) {
	assert := assert.New(t)

	auto := buildAuto(t, false, trule{in: "a b", out: "x"})
	f, err := NewSynonymFilter(canned(
		tk("a", 0, 1, 1),
		tk("c", 2, 3, 1),
	), auto.ToDoubleArray())
	assert.Nil(err)

	tokens, err := drain(f)
	assert.Nil(err)
	assert.Equal([]string{"a", "c"}, terms(tokens))

	// a was held back for the failed extension, c was pulled
	// into the occupied lookahead
	assert.Equal(2, f.Captures())
}

func TestFilterReset(t *testing.T) {
	assert := assert.New(t)

	for _, rules := range bothStores(t,
		trule{in: "a b", out: "y"},
		trule{in: "z", out: "p q"},
	) {
		src := canned(
			tk("a", 0, 1, 1),
			tk("b", 2, 3, 1),
			tk("z", 4, 5, 1),
		)
		f, err := NewSynonymFilter(src, rules)
		assert.Nil(err)

		fresh, err := drain(f)
		assert.Nil(err)
		assert.Equal([]string{"y", "p", "q"}, terms(fresh))

		// Stop mid-stream and start over
		assert.Nil(f.Reset())
		ok, err := f.Next()
		assert.Nil(err)
		assert.True(ok)
		assert.Equal("y", f.Token().String())

		assert.Nil(f.Reset())
		again, err := drain(f)
		assert.Nil(err)
		assert.Equal(fresh, again)
	}
}

func TestFilterUpstreamError(t *testing.T) {
	assert := assert.New(t)

	for _, rules := range bothStores(t, trule{in: "a b", out: "x"}) {
		src := canned(
			tk("a", 0, 1, 1),
			tk("b", 2, 3, 1),
		)
		src.failAt = 1
		f, err := NewSynonymFilter(src, rules)
		assert.Nil(err)

		tokens, err := drain(f)
		assert.NotNil(err)
		assert.Contains(err.Error(), "canned failure")
		assert.Equal(0, len(tokens))
	}
}

func TestFilterFoldedMatching(t *testing.T) {
	assert := assert.New(t)

	rs := NewRuleSet(true, true)
	assert.Nil(rs.Add([]string{"NYC"}, []string{"New", "York"}, false))
	auto, err := rs.Build()
	assert.Nil(err)

	for _, rules := range []RuleStore{auto.ToDoubleArray(), auto.ToMatrix()} {
		assert.True(rules.FoldedCase())

		f, err := NewSynonymFilter(canned(tk("Nyc", 0, 3, 1)), rules)
		assert.Nil(err)

		tokens, err := drain(f)
		assert.Nil(err)
		assert.Equal([]string{"new", "york"}, terms(tokens))
	}
}

func TestFilterEmptyReplacementPanics(t *testing.T) {
	assert := assert.New(t)

	auto := buildAuto(t, false, trule{in: "z", out: "a b"})
	dat := auto.ToDoubleArray()

	// Corrupt the deck: an empty word between two separators
	word := dat.Word(0)
	assert.Equal(3, len(word))
	word[2] = wordSep

	f, err := NewSynonymFilter(canned(tk("z", 0, 1, 1)), dat)
	assert.Nil(err)

	assert.Panics(func() {
		_, _ = drain(f)
	})
}

func TestFilterConfigErrors(t *testing.T) {
	assert := assert.New(t)

	auto := buildAuto(t, false, trule{in: "a", out: "b"})
	dat := auto.ToDoubleArray()

	_, err := NewSynonymFilter(nil, dat)
	assert.NotNil(err)

	_, err = NewSynonymFilter(canned(), nil)
	assert.NotNil(err)

	// A store without rules has no token span to look ahead
	_, err = NewSynonymFilter(canned(), &SynonymMap{})
	assert.NotNil(err)
}

func TestFilterOverTokenizer(t *testing.T) {
	assert := assert.New(t)

	rs := NewRuleSet(true, true)
	assert.Nil(rs.Add([]string{"wlan"}, []string{"wireless", "lan"}, true))
	assert.Nil(rs.Add([]string{"schnellzug"}, []string{"ice"}, false))
	auto, err := rs.Build()
	assert.Nil(err)

	for _, rules := range []RuleStore{auto.ToDoubleArray(), auto.ToMatrix()} {
		z := NewWordTokenizer("Der Schnellzug hat kein WLAN.")
		f, err := NewSynonymFilter(z, rules)
		assert.Nil(err)

		tokens, err := drain(f)
		assert.Nil(err)
		assert.Equal([]string{"Der", "ice", "hat", "kein", "WLAN", "wireless", "lan"}, terms(tokens))

		// lan reaches past the end of the stream and flushes on
		// a position of its own
		assert.Equal([]int{1, 1, 1, 1, 1, 0, 1}, incrs(tokens))
		assert.Equal(24, tokens[6].Start)
		assert.Equal(28, tokens[6].End)
	}
}

func BenchmarkFilterPassThrough(b *testing.B) {
	rs := NewRuleSet(false, true)
	_ = rs.Add([]string{"quick", "fox"}, []string{"speedster"}, false)
	auto, _ := rs.Build()
	dat := auto.ToDoubleArray()

	text := strings.Repeat("the slow brown bear sleeps under a tall tree ", 64)
	z := NewWordTokenizer(text)
	f, _ := NewSynonymFilter(z, dat)
	w := bytes.NewBuffer(make([]byte, 0, 16384))
	tw := NewTokenWriter(w, SIMPLE)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		w.Reset()
		z.SetText(text)
		if err := f.Reset(); err != nil {
			b.Fatal(err)
		}
		if err := Pipe(f, tw); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkFilterExpand(b *testing.B) {
	rs := NewRuleSet(false, true)
	_ = rs.Add([]string{"quick", "fox"}, []string{"speedster"}, false)
	_ = rs.Add([]string{"tree"}, []string{"plant"}, true)
	auto, _ := rs.Build()
	dat := auto.ToDoubleArray()

	text := strings.Repeat("the quick fox jumps over a tall tree ", 64)
	z := NewWordTokenizer(text)
	f, _ := NewSynonymFilter(z, dat)
	w := bytes.NewBuffer(make([]byte, 0, 16384))
	tw := NewTokenWriter(w, SIMPLE)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		w.Reset()
		z.SetText(text)
		if err := f.Reset(); err != nil {
			b.Fatal(err)
		}
		if err := Pipe(f, tw); err != nil {
			b.Fatal(err)
		}
	}
}
