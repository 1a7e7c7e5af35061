package normalize

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/aaaton/golem/v4"
	"github.com/aaaton/golem/v4/dicts/en"
)

// Lemmatizer reduces a word to its dictionary form. Unknown words are
// returned unchanged.
type Lemmatizer interface {
	Lemma(word string) string
}

// maxLemmaSteps bounds lemma chains; real dictionaries resolve in one or two.
const maxLemmaSteps = 16

var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}]+(?:['’][\p{L}\p{N}]+)*`)

// Normalizer lowercases, tokenizes, drops stop-words and punctuation and
// lemmatizes text. Documents and queries must go through the same instance.
type Normalizer struct {
	lemmatizer Lemmatizer
	stopwords  map[string]struct{}
}

// New creates a normalizer with the given lemmatizer and stop-word list.
// A nil lemmatizer leaves tokens as they are; nil stop-words selects the
// built-in English list.
func New(lemmatizer Lemmatizer, stopwords []string) *Normalizer {
	if stopwords == nil {
		stopwords = EnglishStopwords
	}
	set := make(map[string]struct{}, len(stopwords))
	for _, w := range stopwords {
		set[strings.ToLower(w)] = struct{}{}
	}
	return &Normalizer{lemmatizer: lemmatizer, stopwords: set}
}

// NewEnglish loads the golem English dictionary.
func NewEnglish() (*Normalizer, error) {
	lem, err := golem.New(en.New())
	if err != nil {
		return nil, fmt.Errorf("load english lemmatizer: %w", err)
	}
	return New(lem, nil), nil
}

// Normalize returns the space-joined canonical tokens of text.
func (n *Normalizer) Normalize(text string) string {
	raw := n.Tokens(text)
	if len(raw) == 0 {
		return ""
	}
	return strings.Join(raw, " ")
}

// Tokens is Normalize without the final join.
func (n *Normalizer) Tokens(text string) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(text), -1)
	if len(raw) == 0 {
		return nil
	}
	out := raw[:0]
	for _, tok := range raw {
		if n.isStopword(tok) {
			continue
		}
		lemma := n.canonical(tok)
		if n.isStopword(lemma) {
			continue
		}
		out = append(out, lemma)
	}
	return out
}

func (n *Normalizer) isStopword(tok string) bool {
	_, ok := n.stopwords[tok]
	return ok
}

// canonical follows the lemma chain of tok until it settles. A cycle resolves
// to its smallest member so that canonical(canonical(t)) == canonical(t).
func (n *Normalizer) canonical(tok string) string {
	if n.lemmatizer == nil {
		return tok
	}
	path := []string{tok}
	seen := map[string]int{tok: 0}
	cur := tok
	for step := 0; step < maxLemmaSteps; step++ {
		next := strings.ToLower(n.lemmatizer.Lemma(cur))
		if !isToken(next) {
			return cur
		}
		if at, ok := seen[next]; ok {
			return smallest(path[at:])
		}
		seen[next] = len(path)
		path = append(path, next)
		cur = next
	}
	return cur
}

func isToken(s string) bool {
	if s == "" {
		return false
	}
	loc := tokenPattern.FindStringIndex(s)
	return loc != nil && loc[0] == 0 && loc[1] == len(s)
}

func smallest(words []string) string {
	best := words[0]
	for _, w := range words[1:] {
		if w < best {
			best = w
		}
	}
	return best
}
