// internal/wordnorm/wordnorm.go

// Package wordnorm compares Portuguese words the way players type them: with or
// without accents, in any case, with common unaccented spellings corrected.
package wordnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// corrections maps frequent unaccented spellings to their accented form.
var corrections = map[string]string{
	"nao":         "não",
	"mae":         "mãe",
	"pao":         "pão",
	"irmao":       "irmão",
	"limao":       "limão",
	"alemao":      "alemão",
	"acao":        "ação",
	"acoes":       "ações",
	"coracao":     "coração",
	"coracoes":    "corações",
	"opcao":       "opção",
	"opcoes":      "opções",
	"informacao":  "informação",
	"informacoes": "informações",
	"educacao":    "educação",
	"situacao":    "situação",
	"tradicao":    "tradição",
	"emocao":      "emoção",
	"solucao":     "solução",
	"questao":     "questão",
	"questoes":    "questões",
	"decisao":     "decisão",
	"decisoes":    "decisões",
	"televisao":   "televisão",
	"visao":       "visão",
	"ocasiao":     "ocasião",
	"voce":        "você",
	"cafe":        "café",
	"pe":          "pé",
	"fe":          "fé",
	"cha":         "chá",
	"la":          "lá",
	"ca":          "cá",
	"ja":          "já",
	"so":          "só",
	"nos":         "nós",
	"apos":        "após",
	"atraves":     "através",
	"alem":        "além",
	"porem":       "porém",
	"tambem":      "também",
	"ninguem":     "ninguém",
	"alguem":      "alguém",
	"parabens":    "parabéns",
	"tres":        "três",
	"mes":         "mês",
	"paises":      "países",
	"ingles":      "inglês",
	"portugues":   "português",
	"frances":     "francês",
	"japones":     "japonês",
	"chines":      "chinês",
	"agua":        "água",
	"aguia":       "águia",
	"area":        "área",
	"heroi":       "herói",
	"historia":    "história",
	"memoria":     "memória",
	"vitoria":     "vitória",
	"gloria":      "glória",
	"linguica":    "linguiça",
	"frequencia":  "frequência",
	"sequencia":   "sequência",
	"esta":        "está",
	"estao":       "estão",
	"sao":         "são",
}

// aoExclusions are words ending in "ao" that must not be rewritten by the
// suffix rules.
var aoExclusions = map[string]struct{}{
	"mao":       {},
	"cao":       {},
	"sao":       {},
	"joao":      {},
	"sebastiao": {},
}

// suffixRules are tried in order; the first match with a non-empty stem wins.
var suffixRules = []struct {
	from, to string
}{
	{"cao", "ção"},
	{"oes", "ões"},
	{"ao", "ão"},
}

var stripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)))

// Normalize returns the canonical spelling of word. The correction table is
// consulted first, then the suffix rules. When nothing applies the trimmed
// input is returned with its original case.
func Normalize(word string) string {
	trimmed := strings.TrimSpace(word)
	lower := strings.ToLower(trimmed)
	if lower == "" {
		return ""
	}

	if fixed, ok := corrections[lower]; ok {
		return fixed
	}
	if _, excluded := aoExclusions[lower]; excluded {
		return trimmed
	}
	for _, rule := range suffixRules {
		if len(lower) > len(rule.from) && strings.HasSuffix(lower, rule.from) {
			return strings.TrimSuffix(lower, rule.from) + rule.to
		}
	}
	return trimmed
}

// StripDiacritics removes combining marks after canonical decomposition, so
// "ação" becomes "acao".
func StripDiacritics(text string) string {
	out, _, err := transform.String(stripper, text)
	if err != nil {
		return text
	}
	return out
}

// WordsEqual reports whether a guess matches a target word. Two words match
// when their normalized forms are equal ignoring case, or when they are equal
// once accents are removed. Empty input never matches.
func WordsEqual(a, b string) bool {
	if strings.TrimSpace(a) == "" || strings.TrimSpace(b) == "" {
		return false
	}
	na := strings.ToLower(Normalize(a))
	nb := strings.ToLower(Normalize(b))
	if na == nb {
		return true
	}
	return StripDiacritics(na) == StripDiacritics(nb)
}
