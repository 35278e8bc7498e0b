// Package lexicon holds the user-configurable set of filler words.
package lexicon

import (
	"sort"
	"strings"
	"sync"
	"unicode"
)

// DefaultWords are common Korean hesitation markers.
var DefaultWords = []string{"음", "어", "그", "아", "저", "이제", "약간", "뭔가", "좀", "그냥"}

// Lexicon is a mutable set of filler words, safe for concurrent use.
// Readers see every change immediately.
type Lexicon struct {
	mu    sync.RWMutex
	words map[string]struct{}
}

// New creates a lexicon with the given words.
func New(words ...string) *Lexicon {
	l := &Lexicon{words: make(map[string]struct{}, len(words))}
	l.addLocked(words)
	return l
}

// NewDefault creates a lexicon with DefaultWords.
func NewDefault() *Lexicon {
	return New(DefaultWords...)
}

// Contains reports whether word is a filler word.
func (l *Lexicon) Contains(word string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.words[word]
	return ok
}

// Words returns the filler words in sorted order.
func (l *Lexicon) Words() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]string, 0, len(l.words))
	for w := range l.words {
		out = append(out, w)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of filler words.
func (l *Lexicon) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.words)
}

// Replace swaps the whole set.
func (l *Lexicon) Replace(words []string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.words = make(map[string]struct{}, len(words))
	l.addLocked(words)
}

// Add inserts words into the set.
func (l *Lexicon) Add(words ...string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.addLocked(words)
}

// Remove deletes words from the set.
func (l *Lexicon) Remove(words ...string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, w := range words {
		delete(l.words, strings.TrimSpace(w))
	}
}

// addLocked adds trimmed, non-empty words. Entries containing whitespace
// can never match a single token and are skipped.
func (l *Lexicon) addLocked(words []string) {
	for _, w := range words {
		w = strings.TrimSpace(w)
		if w == "" || strings.ContainsFunc(w, unicode.IsSpace) {
			continue
		}
		l.words[w] = struct{}{}
	}
}

