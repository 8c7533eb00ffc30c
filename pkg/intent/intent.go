// Package intent short-circuits small talk before any retrieval happens and
// answers it from fixed response tables.
package intent

import (
	"regexp"
	"strings"
)

// Category groups questions that get a canned local response.
type Category string

const (
	Greeting      Category = "saludo"
	Farewell      Category = "despedida"
	Thanks        Category = "agradecimiento"
	NotUnderstood Category = "no_entiendo"
)

// MaxTrivialTokens is the longest message still treated as small talk when
// it contains a greeting keyword.
const MaxTrivialTokens = 4

var wordRe = regexp.MustCompile(`[\p{L}\p{N}_]+`)

var keywords = map[string]Category{
	"hola":    Greeting,
	"buenos":  Greeting,
	"buenas":  Greeting,
	"hey":     Greeting,
	"saludos": Greeting,
	"gracias": Thanks,
	"adios":   Farewell,
	"adiós":   Farewell,
	"chao":    Farewell,
	"chau":    Farewell,
	"bye":     Farewell,
}

var phrases = map[string]Category{
	"buenos días":    Greeting,
	"buenos dias":    Greeting,
	"buenas tardes":  Greeting,
	"buenas noches":  Greeting,
	"muchas gracias": Thanks,
	"hasta luego":    Farewell,
	"hasta pronto":   Farewell,
	"hasta mañana":   Farewell,
	"nos vemos":      Farewell,
}

var clarifyMarkers = []string{
	"explica",
	"explícame",
	"explicame",
	"sin tecnicismos",
	"en otras palabras",
	"no entiendo",
	"simplifica",
	"resumen",
	"resume",
	"parafrasea",
	"más simple",
	"mas simple",
	"nivel sencillo",
}

// Classify reports whether question is small talk and which kind.
// A message is small talk if it is exactly a known phrase, or if it is at
// most MaxTrivialTokens words long and contains a greeting keyword or phrase.
func Classify(question string) (Category, bool) {
	tokens := wordRe.FindAllString(strings.ToLower(question), -1)
	if len(tokens) == 0 {
		return "", false
	}
	joined := strings.Join(tokens, " ")
	if c, ok := phrases[joined]; ok {
		return c, true
	}
	if len(tokens) > MaxTrivialTokens {
		return "", false
	}

	found := map[Category]bool{}
	for i, tok := range tokens {
		if c, ok := keywords[tok]; ok {
			found[c] = true
		}
		if i+1 < len(tokens) {
			if c, ok := phrases[tok+" "+tokens[i+1]]; ok {
				found[c] = true
			}
		}
	}
	for _, c := range []Category{Farewell, Thanks, Greeting} {
		if found[c] {
			return c, true
		}
	}
	return "", false
}

// IsClarify reports whether the question asks for a simpler or broader explanation.
func IsClarify(question string) bool {
	lower := strings.ToLower(question)
	for _, m := range clarifyMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}
