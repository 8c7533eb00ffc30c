package intent

import (
	"math/rand"
	"sync"
	"time"
)

const fallbackResponse = "Como tu asistente especializado, estoy aquí para ayudarte con cualquier consulta sobre tus documentos."

// DefaultTables holds the canned responses per category.
var DefaultTables = map[Category][]string{
	Greeting: {
		"¡Hola! Soy tu asistente legal especializado. Estoy aquí para ayudarte a analizar y comprender documentos legales. ¿En qué puedo asistirte hoy?",
		"Buenos días/tardes. Soy tu abogado virtual especializado en análisis documental. ¿Qué documentos necesitas que revise o qué consulta legal tienes?",
		"Bienvenido/a. Como tu asistente jurídico especializado, puedo ayudarte a interpretar contratos, normativas y otros documentos legales. ¿Cómo puedo ayudarte?",
	},
	Farewell: {
		"Ha sido un placer asistirte con tus consultas legales. Recuerda que siempre estoy aquí para ayudarte con el análisis de documentos. ¡Hasta pronto!",
		"Espero haber sido de ayuda en tu consulta legal. Quedo a tu disposición para futuras revisiones documentales. ¡Que tengas un excelente día!",
	},
	Thanks: {
		"¡Con gusto! Si necesitas revisar más documentos o tienes otras consultas legales, no dudes en escribirme.",
		"Gracias a ti por confiar en mi análisis jurídico. ¿Hay algo más que quieras revisar?",
	},
	NotUnderstood: {
		"Como abogado especializado, necesito más contexto para brindarte una respuesta precisa. ¿Podrías reformular tu consulta legal o especificar qué tipo de documento necesitas analizar?",
		"Para ofrecerte el mejor análisis jurídico, requiero información más específica. ¿Te refieres a algún tipo particular de contrato, normativa o documento legal?",
		"No estoy seguro de entender 😅, pero puedo intentarlo otra vez.",
	},
}

// Responder picks a uniformly random response for a category.
type Responder struct {
	mu     sync.Mutex
	rng    *rand.Rand
	tables map[Category][]string
}

// NewResponder creates a Responder. A nil rng is seeded from the clock;
// nil tables means DefaultTables.
func NewResponder(rng *rand.Rand, tables map[Category][]string) *Responder {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if tables == nil {
		tables = DefaultTables
	}
	return &Responder{rng: rng, tables: tables}
}

// Respond returns one response for c.
func (r *Responder) Respond(c Category) string {
	options := r.tables[c]
	if len(options) == 0 {
		return fallbackResponse
	}
	r.mu.Lock()
	i := r.rng.Intn(len(options))
	r.mu.Unlock()
	return options[i]
}
