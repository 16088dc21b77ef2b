/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package blackjack

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWordPool_Load(t *testing.T) {
	tests := []struct {
		name  string
		words []Word
		want  error
	}{
		{name: "empty", words: nil, want: ErrEmptyPool},
		{name: "blank name", words: []Word{{Name: "  ", Value: 1}}, want: ErrInvalidData},
		{name: "negative value", words: []Word{{Name: "a", Value: -5}}, want: ErrInvalidData},
		{name: "duplicate", words: []Word{{Name: "a", Value: 1}, {Name: "a", Value: 2}}, want: ErrInvalidData},
		{name: "valid", words: []Word{{Name: "a", Value: 1}, {Name: "b", Value: 0}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewWordPool()
			err := p.Load(tt.words)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
				assert.Equal(t, 0, p.Len())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, len(tt.words), p.Len())
		})
	}
}

func TestWordPool_LoadKeepsPreviousOnError(t *testing.T) {
	p := NewWordPool()
	require.NoError(t, p.Load([]Word{{Name: "a", Value: 1}}))

	assert.ErrorIs(t, p.Load(nil), ErrEmptyPool)
	assert.Equal(t, 1, p.Len())
}

func TestWordPool_LoadClearsConsumed(t *testing.T) {
	p := NewWordPool()
	require.NoError(t, p.Load([]Word{{Name: "a", Value: 1}}))
	require.NoError(t, p.Consume("a"))

	require.NoError(t, p.Load([]Word{{Name: "a", Value: 1}}))
	assert.False(t, p.IsConsumed("a"))
}

func TestWordPool_Consume(t *testing.T) {
	p := NewWordPool()
	require.NoError(t, p.Load([]Word{{Name: "w1", Value: 60}, {Name: "w2", Value: 50}, {Name: "w3", Value: 10}}))

	assert.ErrorIs(t, p.Consume("nope"), ErrUnknownWord)

	require.NoError(t, p.Consume("w2"))
	assert.True(t, p.IsConsumed("w2"))
	assert.ErrorIs(t, p.Consume("w2"), ErrAlreadyConsumed)

	assert.Equal(t, []Word{{Name: "w1", Value: 60}, {Name: "w3", Value: 10}}, p.Remaining())
	assert.Equal(t, p.Len(), p.Consumed()+len(p.Remaining()))
	assert.False(t, p.Exhausted())

	require.NoError(t, p.Consume("w1"))
	require.NoError(t, p.Consume("w3"))
	assert.Empty(t, p.Remaining())
	assert.True(t, p.Exhausted())
}

func TestWordPool_Suggest(t *testing.T) {
	p := NewWordPool()
	require.NoError(t, p.Load([]Word{{Name: "Banana", Value: 1}, {Name: "Cherry", Value: 2}}))

	got, ok := p.Suggest("banan")
	assert.True(t, ok)
	assert.Equal(t, "Banana", got)

	_, ok = p.Suggest("pineapple")
	assert.False(t, ok)

	_, ok = p.Suggest("")
	assert.False(t, ok)

	require.NoError(t, p.Consume("Banana"))
	_, ok = p.Suggest("banan")
	assert.False(t, ok, "consumed words are never suggested")
}
