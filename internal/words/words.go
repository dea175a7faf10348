// Package words serves random words from an embedded list.
package words

import (
	_ "embed"
	"math/rand/v2"
	"strings"
)

//go:embed words.txt
var wordList string

// Source picks words uniformly at random. It is safe for concurrent use.
type Source struct {
	words []string
}

// Default returns a Source over the embedded list.
func Default() *Source {
	return New(strings.Fields(wordList))
}

// New returns a Source over the given words. It panics if words is empty.
func New(words []string) *Source {
	if len(words) == 0 {
		panic("words: empty word list")
	}
	return &Source{words: words}
}

// Random returns one word.
func (s *Source) Random() string {
	return s.words[rand.IntN(len(s.words))]
}

// Len returns the number of words in the source.
func (s *Source) Len() int {
	return len(s.words)
}
