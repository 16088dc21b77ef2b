/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package blackjack

import (
	"fmt"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/samber/lo"
)

// maxSuggestDistance is how many edits a typed name may be away from a
// remaining word before we stop suggesting it.
const maxSuggestDistance = 2

type Word struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// WordPool holds the loaded words and tracks which ones have been used.
type WordPool struct {
	words    []Word
	index    map[string]int
	consumed map[string]bool
}

func NewWordPool() *WordPool {
	return &WordPool{
		index:    make(map[string]int),
		consumed: make(map[string]bool),
	}
}

// Load replaces the pool contents and clears the consumed set. The previous
// contents are kept if words is rejected.
func (p *WordPool) Load(words []Word) error {
	if len(words) == 0 {
		return ErrEmptyPool
	}

	index := make(map[string]int, len(words))
	for i, w := range words {
		if strings.TrimSpace(w.Name) == "" {
			return fmt.Errorf("%w: entry %d has no name", ErrInvalidData, i)
		}
		if w.Value < 0 {
			return fmt.Errorf("%w: %q has negative value %d", ErrInvalidData, w.Name, w.Value)
		}
		if _, dup := index[w.Name]; dup {
			return fmt.Errorf("%w: duplicate word %q", ErrInvalidData, w.Name)
		}
		index[w.Name] = i
	}

	p.words = append([]Word(nil), words...)
	p.index = index
	p.consumed = make(map[string]bool, len(words))

	return nil
}

func (p *WordPool) Lookup(name string) (Word, bool) {
	i, ok := p.index[name]
	if !ok {
		return Word{}, false
	}
	return p.words[i], true
}

func (p *WordPool) IsConsumed(name string) bool {
	return p.consumed[name]
}

func (p *WordPool) Consume(name string) error {
	if _, ok := p.index[name]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownWord, name)
	}
	if p.consumed[name] {
		return fmt.Errorf("%w: %q", ErrAlreadyConsumed, name)
	}

	p.consumed[name] = true

	return nil
}

// Remaining returns the unconsumed words in load order.
func (p *WordPool) Remaining() []Word {
	return lo.Filter(p.words, func(w Word, _ int) bool {
		return !p.consumed[w.Name]
	})
}

func (p *WordPool) Len() int {
	return len(p.words)
}

func (p *WordPool) Consumed() int {
	return len(p.consumed)
}

func (p *WordPool) Exhausted() bool {
	return len(p.words) > 0 && len(p.consumed) == len(p.words)
}

// Suggest returns the remaining word closest to name, if one is within a
// couple of edits. Matching ignores case and surrounding whitespace.
func (p *WordPool) Suggest(name string) (string, bool) {
	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return "", false
	}

	best, bestDist := "", maxSuggestDistance+1
	for _, w := range p.Remaining() {
		dist := levenshtein.ComputeDistance(needle, strings.ToLower(w.Name))
		if dist < bestDist {
			best, bestDist = w.Name, dist
		}
	}

	return best, best != ""
}
