package syntok

// The filter walks the compiled rules over a lookahead window of
// the token stream. Matching is greedy: of all rules starting at
// the current position the one consuming the most tokens wins,
// and matching restarts after the consumed tokens. Replacement
// tokens are stacked at the position of the first consumed token
// with further words of a multi-word replacement spread over the
// following positions.
//
// The lookahead window and the queued replacements live in two
// index aligned rings sized to the widest rule side plus one, so
// a scan can never overtake the replay cursor.

import (
	"fmt"

	"github.com/VictoriaMetrics/metrics"
	"github.com/rs/zerolog/log"
)

var (
	matchTotal    = metrics.NewCounter(`syntok_matches_total`)
	synTokenTotal = metrics.NewCounter(`syntok_synonym_tokens_total`)
	captureTotal  = metrics.NewCounter(`syntok_captures_total`)
)

// heldToken is one slot of the lookahead ring.
type heldToken struct {

	// Snapshot of the token, nil when the token is still live
	// upstream and can be passed through without a copy.
	state *Token

	term     []rune
	start    int
	end      int
	posIncr  int
	keepOrig bool
	matched  bool
	consumed bool
}

// reset clears the match bookkeeping but keeps the offsets, they
// anchor queued outputs played after the token itself.
func (h *heldToken) reset() {
	h.state = nil
	h.consumed = true
	h.keepOrig = false
	h.matched = false
}

// outputQueue holds the replacement words queued at one slot.
type outputQueue struct {
	terms [][]rune
	ends  []int
	spans []int

	upto  int
	count int

	// Increment for the next replacement played from this slot,
	// 0 once anything was emitted at the position.
	posIncr int

	lastEnd  int
	lastSpan int
}

func (q *outputQueue) reset() {
	q.upto = 0
	q.count = 0
	q.posIncr = 1
}

func (q *outputQueue) add(term []rune, end, span int) {
	if q.count == len(q.terms) {
		q.terms = append(q.terms, nil)
		q.ends = append(q.ends, 0)
		q.spans = append(q.spans, 0)
	}
	q.terms[q.count] = append(q.terms[q.count][:0], term...)
	q.ends[q.count] = end
	q.spans[q.count] = span
	q.count++
}

func (q *outputQueue) pull() []rune {
	if q.upto >= q.count {
		panic("syntok: output queue underflow")
	}
	q.lastEnd = q.ends[q.upto]
	q.lastSpan = q.spans[q.upto]
	term := q.terms[q.upto]
	q.upto++
	q.posIncr = 0
	if q.upto == q.count {
		q.reset()
	}
	return term
}

// A SynonymFilter expands multi-word synonyms in a token stream.
// Replacements are stacked into the stream with a position
// increment of 0, matched tokens are dropped unless their rule
// keeps them. Matching folds case when the rule store was built
// folded. The filter is not safe for concurrent use and a rule
// store must not be shared between filters running concurrently
// either, a store is read-only though, so running one filter per
// stream over a shared store is fine.
type SynonymFilter struct {
	input TokenStream
	rules RuleStore

	folded bool
	tok    Token

	held  []heldToken
	queue []outputQueue

	bufSize   int
	nextRead  int
	nextWrite int

	// Slots still to replay before the next scan
	skipCount int

	captures int
	finished bool

	// Offsets of the last token pulled, anchoring replacements
	// played after the stream is exhausted
	lastStart int
	lastEnd   int
}

// NewSynonymFilter wraps a token stream with synonym expansion
// over a compiled rule store.
func NewSynonymFilter(input TokenStream, rules RuleStore) (*SynonymFilter, error) {
	if input == nil {
		return nil, fmt.Errorf("syntok: nil token source")
	}
	if rules == nil {
		return nil, fmt.Errorf("syntok: nil rule store")
	}
	span := rules.MaxTokenSpan()
	if span < 1 {
		return nil, fmt.Errorf("syntok: rule store without rules")
	}

	f := &SynonymFilter{
		input:   input,
		rules:   rules,
		folded:  rules.FoldedCase(),
		bufSize: span + 1,
	}
	f.held = make([]heldToken, f.bufSize)
	f.queue = make([]outputQueue, f.bufSize)
	for i := range f.held {
		f.held[i].consumed = true
	}
	for i := range f.queue {
		f.queue[i].posIncr = 1
	}
	f.tok.Clear()
	return f, nil
}

// Token returns the filter's reusable token value.
func (f *SynonymFilter) Token() *Token {
	return &f.tok
}

// Captures returns the number of lookahead snapshots taken since
// the last reset.
func (f *SynonymFilter) Captures() int {
	return f.captures
}

func (f *SynonymFilter) roll(i int) int {
	i++
	if i == f.bufSize {
		return 0
	}
	return i
}

// capture snapshots the live upstream token into the write slot.
func (f *SynonymFilter) capture() {
	f.captures++
	captureTotal.Inc()

	src := f.input.Token()
	h := &f.held[f.nextWrite]
	h.state = src.Clone()
	h.consumed = false
	h.term = append(h.term[:0], src.Term...)

	f.nextWrite = f.roll(f.nextWrite)

	// Write head must never catch up to the replay cursor
	if f.nextWrite == f.nextRead {
		panic("syntok: lookahead buffer overflow")
	}
}

// Next emits the next token of the expanded stream.
func (f *SynonymFilter) Next() (bool, error) {
	for {

		// First play back held tokens and queued replacements
		// without scanning again.
		for f.skipCount != 0 {
			h := &f.held[f.nextRead]
			q := &f.queue[f.nextRead]

			if !h.consumed && (h.keepOrig || !h.matched) {

				// The original token survives at this slot
				if h.state != nil {
					f.tok.CopyFrom(h.state)
				} else {
					// Pass through the token still live upstream
					if f.skipCount != 1 {
						panic("syntok: uncaptured token behind lookahead")
					}
					f.tok.CopyFrom(f.input.Token())
				}
				h.reset()
				if q.count > 0 {
					q.posIncr = 0
				} else {
					f.nextRead = f.roll(f.nextRead)
					f.skipCount--
				}
				return true, nil
			}

			if q.upto < q.count {

				// Replacements still queued at this slot
				h.reset()
				posIncr := q.posIncr
				term := q.pull()

				f.tok.Clear()
				f.tok.Term = append(f.tok.Term[:0], term...)
				f.tok.Type = TypeSynonym
				end := q.lastEnd
				if end == -1 {
					// Inherit the offsets of the overlapped token
					end = h.end
				}
				f.tok.Start = h.start
				f.tok.End = end
				f.tok.PosIncr = posIncr
				f.tok.PosLen = q.lastSpan

				if q.count == 0 {
					f.nextRead = f.roll(f.nextRead)
					f.skipCount--
				}
				synTokenTotal.Inc()
				return true, nil
			}

			// Slot done
			h.reset()
			f.nextRead = f.roll(f.nextRead)
			f.skipCount--
		}

		if f.finished && f.nextRead == f.nextWrite {

			// End case: play replacements reaching beyond the
			// last input token, anchored at its offsets.
			q := &f.queue[f.nextRead]
			if q.upto < q.count {
				posIncr := q.posIncr
				term := q.pull()
				f.held[f.nextRead].reset()
				if q.count == 0 {
					f.nextRead = f.roll(f.nextRead)
					f.nextWrite = f.nextRead
				}

				f.tok.Clear()
				f.tok.Term = append(f.tok.Term[:0], term...)
				f.tok.Type = TypeSynonym
				f.tok.Start = f.lastStart
				f.tok.End = f.lastEnd
				f.tok.PosIncr = posIncr
				synTokenTotal.Inc()
				return true, nil
			}
			return false, nil
		}

		// Look for new matches
		if err := f.scan(); err != nil {
			return false, err
		}
	}
}

// scan walks the rules over the tokens starting at the replay
// cursor, pulling from upstream past the lookahead, and arms the
// replay for the longest match found, or for one plain token.
func (f *SynonymFilter) scan() error {
	if f.skipCount != 0 {
		panic("syntok: scan during replay")
	}

	curNextRead := f.nextRead

	var matchPayload []byte
	matchLength := 0
	matchEnd := -1

	state := f.rules.Start()
	tokenCount := 0

byToken:
	for {
		var term []rune
		var tokenEnd int
		var posIncr int

		if curNextRead == f.nextWrite {

			// Lookahead used up, pull the next token
			if f.finished {
				break
			}

			ok, err := f.input.Next()
			if err != nil {
				return err
			}
			if !ok {
				f.finished = true
				break
			}

			src := f.input.Token()
			h := &f.held[f.nextWrite]
			if !h.consumed {
				panic("syntok: clobbering unconsumed lookahead slot")
			}

			f.lastStart = src.Start
			f.lastEnd = src.End
			h.start = src.Start
			h.end = src.End
			h.posIncr = src.PosIncr
			term = src.Term
			tokenEnd = src.End
			posIncr = src.PosIncr

			if DEBUG {
				log.Debug().Str("term", src.String()).Int("slot", f.nextWrite).Msg("pulled token")
			}

			if f.nextRead != f.nextWrite {
				f.capture()
			} else {
				h.consumed = false
			}
		} else {

			// Still inside the lookahead
			h := &f.held[curNextRead]
			term = h.term
			tokenEnd = h.end
			posIncr = h.posIncr
		}

		// A token stacked at the same position neither starts
		// nor extends a match.
		if posIncr == 0 {
			break
		}

		tokenCount++

		// Run each character of the token through the rules
		for _, r := range term {
			if f.folded {
				r = foldRune(r)
			}
			if state = f.rules.Step(state, r); state == 0 {
				break byToken
			}
		}

		// The whole token matched, remember an accepting state
		if payload, ok := f.rules.Final(state); ok {
			matchPayload = payload
			matchLength = tokenCount
			matchEnd = tokenEnd
		}

		// Continue only if a rule crosses the word boundary here
		if state = f.rules.StepBoundary(state); state == 0 {
			break
		}

		if f.nextRead == f.nextWrite {
			f.capture()
		}
		curNextRead = f.roll(curNextRead)
	}

	// Include the directly passed token in the window
	if f.nextRead == f.nextWrite && !f.finished {
		f.nextWrite = f.roll(f.nextWrite)
	}

	if matchPayload != nil {
		matchTotal.Inc()
		if DEBUG {
			log.Debug().Int("length", matchLength).Int("end", matchEnd).Msg("match")
		}
		f.skipCount = matchLength
		f.queueMatch(matchPayload, matchLength, matchEnd)
	} else if f.nextRead != f.nextWrite {

		// No match, skip one token before scanning again
		f.skipCount = 1
	}

	return nil
}

// queueMatch spreads the replacements of a match over the queue
// slots starting at the replay cursor and marks the consumed
// tokens.
func (f *SynonymFilter) queueMatch(payload []byte, matchLength, matchEnd int) {
	ids, keepOrig := decodeOutputs(payload)

	for _, id := range ids {
		phrase := f.rules.Word(id)
		outputUpto := f.nextRead
		last := 0
		for i := 0; i <= len(phrase); i++ {
			if i == len(phrase) || phrase[i] == wordSep {
				word := phrase[last:i]
				if len(word) == 0 {
					panic("syntok: empty replacement word")
				}

				var end, span int
				if i == len(phrase) && last == 0 {
					// A single word replacement covers the
					// whole match
					end = matchEnd
					if keepOrig {
						span = matchLength
					} else {
						span = 1
					}
				} else {
					// Further words overlap the following
					// input tokens and inherit their offsets
					end = -1
					span = 1
				}

				f.queue[outputUpto].add(word, end, span)
				last = i + 1
				outputUpto = f.roll(outputUpto)
				if f.queue[outputUpto].posIncr != 1 {
					panic("syntok: output queue out of step")
				}
			}
		}
	}

	upto := f.nextRead
	for i := 0; i < matchLength; i++ {
		h := &f.held[upto]
		h.keepOrig = h.keepOrig || keepOrig
		h.matched = true
		upto = f.roll(upto)
	}
}

// Reset clears all lookahead state and resets the source, so the
// filter can run the stream again from the start.
func (f *SynonymFilter) Reset() error {
	if err := f.input.Reset(); err != nil {
		return err
	}
	f.captures = 0
	f.finished = false
	f.skipCount = 0
	f.nextRead = 0
	f.nextWrite = 0
	f.lastStart = 0
	f.lastEnd = 0
	for i := range f.held {
		f.held[i].reset()
	}
	for i := range f.queue {
		f.queue[i].reset()
	}
	f.tok.Clear()
	return nil
}
