// internal/game/challenge.go
package game

import (
	"strings"
	"unicode/utf8"
)

// Challenge tracks one player's progress through the opponent's word chain.
// Word 0 is the keyword and is given away; guessing starts at index 1.
type Challenge struct {
	Targets      []string // opponent's words as typed
	TargetsLower []string
	Completed    []bool
	GuessIndex   int
	Revealed     []int // letters shown per word
}

// NewChallenge builds a challenge over words. original and lower must have the
// same length.
func NewChallenge(original, lower []string) *Challenge {
	n := len(lower)
	ch := &Challenge{
		Targets:      append([]string(nil), original...),
		TargetsLower: append([]string(nil), lower...),
		Completed:    make([]bool, n),
		GuessIndex:   1,
		Revealed:     make([]int, n),
	}
	for i := range ch.Revealed {
		ch.Revealed[i] = 1
	}
	if n > 0 {
		ch.Completed[0] = true
		ch.Revealed[0] = utf8.RuneCountInString(lower[0])
	}
	return ch
}

// Done reports whether every word has been guessed.
func (ch *Challenge) Done() bool {
	return ch.GuessIndex >= len(ch.TargetsLower)
}

// CurrentTarget returns the lowercase word being guessed.
func (ch *Challenge) CurrentTarget() string {
	if ch.Done() {
		return ""
	}
	return ch.TargetsLower[ch.GuessIndex]
}

// Solve marks the current word as guessed and moves to the next one.
func (ch *Challenge) Solve() {
	if ch.Done() {
		return
	}
	ch.Completed[ch.GuessIndex] = true
	ch.GuessIndex++
}

// RevealMore shows one more letter of the current word, never past its length.
func (ch *Challenge) RevealMore() {
	if ch.Done() {
		return
	}
	limit := utf8.RuneCountInString(ch.TargetsLower[ch.GuessIndex])
	if ch.Revealed[ch.GuessIndex] < limit {
		ch.Revealed[ch.GuessIndex]++
	}
}

// CurrentHint is the masked form of the word being guessed.
func (ch *Challenge) CurrentHint() string {
	if ch.Done() {
		return ""
	}
	return Hint(ch.TargetsLower[ch.GuessIndex], ch.Revealed[ch.GuessIndex])
}

// Hint shows the first revealed letters of word in upper case followed by one
// underscore per hidden letter. A fully revealed word is returned upper-cased.
func Hint(word string, revealed int) string {
	letters := []rune(word)
	if len(letters) == 0 {
		return "_"
	}
	if revealed >= len(letters) {
		return strings.ToUpper(word)
	}
	if revealed < 0 {
		revealed = 0
	}
	return strings.ToUpper(string(letters[:revealed])) + strings.Repeat("_", len(letters)-revealed)
}
