package answer

import (
	"strings"
)

const (
	apologyLead = "Lo siento, no encuentro información específica sobre esa consulta en el documento actual."
	apologyTail = "¿Podrías reformular tu pregunta o ser más específico sobre lo que buscas?"
)

// notFoundClaims are phrases with which a model states the context had nothing relevant.
var notFoundClaims = []string{
	"no encuentro información",
	"no encontré información",
	"no se encontró información",
	"no hay información",
	"no contiene información",
	"no se encuentra en los documentos",
	"no se encuentra en el documento",
	"no se menciona en el documento",
	"no se menciona en el contexto",
	"no aparece en el documento",
	"not found in the document",
	"no information",
}

// maxClaimWords bounds how long an answer may be and still count as a bare
// not-found claim.
const maxClaimWords = 20

// IsNotFound reports whether text is empty, carries the sentinel, or
// consists only of a claim that nothing relevant was found. A claim inside
// a longer answer leaves the answer alone.
func IsNotFound(text string) bool {
	t := strings.TrimSpace(text)
	if t == "" {
		return true
	}
	if strings.Contains(strings.ToUpper(t), NotFoundSentinel) {
		return true
	}
	return isBareClaim(t)
}

// isBareClaim reports whether t is a single short sentence containing a
// not-found claim.
func isBareClaim(t string) bool {
	body := strings.TrimRight(t, ".!?¡¿ ")
	if strings.ContainsAny(body, ".!?\n") || len(strings.Fields(body)) > maxClaimWords {
		return false
	}
	lower := strings.ToLower(body)
	for _, claim := range notFoundClaims {
		if strings.Contains(lower, claim) {
			return true
		}
	}
	return false
}

// Apology is the user-facing replacement for a not-found answer. It names
// the missing information when the model supplied it.
func Apology(missingInfo string) string {
	var b strings.Builder
	b.WriteString(apologyLead)
	if m := strings.TrimSpace(missingInfo); m != "" && !IsNotFoundSentinel(m) {
		b.WriteString(" Información no disponible: ")
		b.WriteString(strings.TrimRight(m, ". "))
		b.WriteString(".")
	}
	b.WriteString(" ")
	b.WriteString(apologyTail)
	return b.String()
}

// IsNotFoundSentinel reports whether s is exactly the sentinel, ignoring case and spacing.
func IsNotFoundSentinel(s string) bool {
	return strings.EqualFold(strings.TrimSpace(s), NotFoundSentinel)
}
