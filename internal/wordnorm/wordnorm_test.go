package wordnorm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"table entry", "nao", "não"},
		{"table entry uppercase input", "CAFE", "café"},
		{"table wins over exclusion", "sao", "são"},
		{"cao suffix", "canção", "canção"},
		{"cao suffix rewritten", "eleicao", "eleição"},
		{"oes suffix rewritten", "balcoes", "balcões"},
		{"ao suffix rewritten", "feijao", "feijão"},
		{"excluded word kept", "mao", "mao"},
		{"excluded proper name kept", "Joao", "Joao"},
		{"bare suffix is not a stem", "ao", "ao"},
		{"untouched keeps case", "  Casa ", "Casa"},
		{"empty", "   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestStripDiacritics(t *testing.T) {
	assert.Equal(t, "acao", StripDiacritics("ação"))
	assert.Equal(t, "voce", StripDiacritics("você"))
	assert.Equal(t, "Sao Joao", StripDiacritics("São João"))
	assert.Equal(t, "plain", StripDiacritics("plain"))
	assert.Equal(t, "", StripDiacritics(""))
}

func TestWordsEqual(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"nao", "não", true},
		{"café", "cafe", true},
		{"CAFÉ", "cafe", true},
		{"mao", "mão", true},
		{"Coracao", "coração", true},
		{"  casa ", "CASA", true},
		{"casa", "mesa", false},
		{"", "", false},
		{"casa", "", false},
		{" ", "casa", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, WordsEqual(tt.a, tt.b), "WordsEqual(%q, %q)", tt.a, tt.b)
	}
}
