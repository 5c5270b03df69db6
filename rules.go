package syntok

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Rule phrases run through the word tokenizer, so rules split on
// the same boundaries as the analyzed text later on.
func analyzeWords(phrase string) ([]string, error) {
	z := NewWordTokenizer(phrase)
	var words []string
	for {
		ok, err := z.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		words = append(words, z.Token().String())
	}
	if len(words) == 0 {
		return nil, fmt.Errorf("syntok: no words in %q", phrase)
	}
	return words, nil
}

// splitEscaped splits on sep, ignoring occurrences preceded by a
// backslash.
func splitEscaped(s, sep string) []string {
	var parts []string
	var cur strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			cur.WriteByte(s[i])
			cur.WriteByte(s[i+1])
			i++
			continue
		}
		if strings.HasPrefix(s[i:], sep) {
			parts = append(parts, cur.String())
			cur.Reset()
			i += len(sep) - 1
			continue
		}
		cur.WriteByte(s[i])
	}
	parts = append(parts, cur.String())
	return parts
}

func unescape(s string) string {
	s = strings.TrimSpace(s)
	if !strings.Contains(s, "\\") {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// ParseSolr reads rules in the Solr synonym format:
//
//	# comment
//	couch, sofa, divan
//	i-pod, i pod => ipod
//	foo => foo bar, baz
//
// Lines without explicit mapping relate equivalent phrases: with
// expand every phrase maps to every other, without it every
// phrase maps to the first. Backslashes escape the separators.
func (rs *RuleSet) ParseSolr(ior io.Reader, expand bool) error {
	scanner := bufio.NewScanner(ior)
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Text()
		if len(strings.TrimSpace(text)) == 0 || strings.HasPrefix(text, "#") {
			continue
		}
		if err := rs.addSolrLine(text, expand); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
	}
	return scanner.Err()
}

func (rs *RuleSet) addSolrLine(text string, expand bool) error {
	sides := splitEscaped(text, "=>")
	if len(sides) > 2 {
		return fmt.Errorf("syntok: more than one explicit mapping in %q", text)
	}

	if len(sides) == 2 {
		outputs := splitEscaped(sides[1], ",")
		for _, in := range splitEscaped(sides[0], ",") {
			inWords, err := analyzeWords(unescape(in))
			if err != nil {
				return err
			}
			for _, out := range outputs {
				outWords, err := analyzeWords(unescape(out))
				if err != nil {
					return err
				}
				if err := rs.Add(inWords, outWords, false); err != nil {
					return err
				}
			}
		}
		return nil
	}

	alts := splitEscaped(sides[0], ",")
	words := make([][]string, 0, len(alts))
	for _, alt := range alts {
		w, err := analyzeWords(unescape(alt))
		if err != nil {
			return err
		}
		words = append(words, w)
	}

	if expand {
		for _, in := range words {
			for _, out := range words {
				if err := rs.Add(in, out, false); err != nil {
					return err
				}
			}
		}
		return nil
	}
	for _, in := range words {
		if err := rs.Add(in, words[0], false); err != nil {
			return err
		}
	}
	return nil
}

// LoadSolrFile reads a Solr synonym file into the rule set.
func (rs *RuleSet) LoadSolrFile(file string, expand bool) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()
	return rs.ParseSolr(f, expand)
}

// ParseWordNet reads rules in the WordNet prolog format
// (wn_s.pl):
//
//	s(100002137,1,'abstraction',n,6,0).
//
// Senses sharing a synset id are synonyms of each other. The
// lines of a synset have to be adjacent, as they are in the
// WordNet distribution. Expansion works as for ParseSolr.
func (rs *RuleSet) ParseWordNet(ior io.Reader, expand bool) error {
	scanner := bufio.NewScanner(ior)
	line := 0
	lastID := ""
	var synset [][]string

	flush := func() error {
		if len(synset) == 0 {
			return nil
		}
		if expand {
			for _, in := range synset {
				for _, out := range synset {
					if err := rs.Add(in, out, false); err != nil {
						return err
					}
				}
			}
		} else {
			for _, in := range synset {
				if err := rs.Add(in, synset[0], false); err != nil {
					return err
				}
			}
		}
		synset = synset[:0]
		return nil
	}

	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		id, term, err := parseWordNetLine(text)
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}

		if id != lastID {
			if err := flush(); err != nil {
				return fmt.Errorf("line %d: %w", line, err)
			}
			lastID = id
		}

		words, err := analyzeWords(term)
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		synset = append(synset, words)
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return flush()
}

// parseWordNetLine extracts the synset id and the quoted term,
// with '' unescaped to a single quote.
func parseWordNetLine(text string) (id, term string, err error) {
	if !strings.HasPrefix(text, "s(") {
		return "", "", fmt.Errorf("syntok: unexpected line %q", text)
	}
	rest := text[2:]

	comma := strings.IndexByte(rest, ',')
	if comma < 0 {
		return "", "", fmt.Errorf("syntok: malformed line %q", text)
	}
	id = rest[:comma]

	// Skip the word number
	rest = rest[comma+1:]
	comma = strings.IndexByte(rest, ',')
	if comma < 0 {
		return "", "", fmt.Errorf("syntok: malformed line %q", text)
	}
	rest = rest[comma+1:]

	if len(rest) == 0 || rest[0] != '\'' {
		return "", "", fmt.Errorf("syntok: missing term in %q", text)
	}
	rest = rest[1:]

	var b strings.Builder
	for i := 0; i < len(rest); i++ {
		if rest[i] == '\'' {
			if i+1 < len(rest) && rest[i+1] == '\'' {
				b.WriteByte('\'')
				i++
				continue
			}
			return id, b.String(), nil
		}
		b.WriteByte(rest[i])
	}
	return "", "", fmt.Errorf("syntok: unterminated term in %q", text)
}

// LoadWordNetFile reads a WordNet prolog file into the rule set.
func (rs *RuleSet) LoadWordNetFile(file string, expand bool) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()
	return rs.ParseWordNet(f, expand)
}
