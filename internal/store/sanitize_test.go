package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeQuery(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"lowercase", "TOMATO Varieties", "tomato varieties"},
		{"strip punctuation", "tomato!!! (heirloom)?", "tomato heirloom"},
		{"collapse whitespace", "  tomato \t\n varieties  ", "tomato varieties"},
		{"keep hyphen and underscore", "cherry-tomato my_notes", "cherry-tomato my_notes"},
		{"digits kept", "top 10 tips", "top 10 tips"},
		{"punctuation only", "!!!...,,;;", ""},
		{"empty", "", ""},
		{"unicode letters", "Crème Brûlée", "crème brûlée"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeQuery(tt.input))
		})
	}
}

func TestSanitizeQueryTerms(t *testing.T) {
	assert.Equal(t, []string{"tomato", "care"}, SanitizeQueryTerms("Tomato, care!"))
	assert.Empty(t, SanitizeQueryTerms("?!"))
	assert.Empty(t, SanitizeQueryTerms(""))
}

func TestCountOccurrences(t *testing.T) {
	assert.Equal(t, 2, CountOccurrences("tomato and tomato sauce", "tomato"))
	assert.Equal(t, 0, CountOccurrences("notebook entries", "note"), "matching is word-level")
	assert.Equal(t, 0, CountOccurrences("", "tomato"))
	assert.Equal(t, 0, CountOccurrences("tomato", ""))
}
