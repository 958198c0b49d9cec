// internal/game/utils.go
package game

import (
	"crypto/rand"
	"encoding/json"
	"math/big"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
)

// Random is the source of randomness for room codes and first-turn picks.
// Tests substitute a deterministic implementation.
type Random interface {
	// Intn returns a random int in [0, n).
	Intn(n int) int
	// String returns a random string of the given length drawn from alphabet.
	String(length int, alphabet string) string
}

// CryptoRandom implements Random using crypto/rand.
type CryptoRandom struct{}

func (CryptoRandom) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0
	}
	return int(v.Int64())
}

func (r CryptoRandom) String(length int, alphabet string) string {
	if length <= 0 || alphabet == "" {
		return ""
	}
	out := make([]byte, length)
	for i := range out {
		out[i] = alphabet[r.Intn(len(alphabet))]
	}
	return string(out)
}

// EncodeEvent marshals a GameEvent into JSON bytes.
// Logs a warning and returns nil on marshalling error; callers skip the frame.
func EncodeEvent(ev GameEvent) []byte {
	data, err := json.Marshal(ev)
	if err != nil {
		logrus.Warnf("Failed to marshal GameEvent type %s: %v", ev.Type, err)
		return nil
	}
	return data
}

// runeLenTrimmed counts the runes of s after trimming surrounding whitespace.
func runeLenTrimmed(s string) int {
	return utf8.RuneCountInString(strings.TrimSpace(s))
}
