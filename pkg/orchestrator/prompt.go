package orchestrator

import (
	"strings"

	"github.com/alana-ai/alana/pkg/answer"
	"github.com/alana-ai/alana/pkg/llm"
)

const (
	ragSystemPrompt    = "Eres un asistente útil y preciso. Responde en JSON según lo solicitado."
	directSystemPrompt = "Eres un asistente amable y útil."

	clarifySuffix = "\n\nIMPORTANTE: Si la petición es una aclaración o simplificación, responde en lenguaje sencillo, sin tecnicismos, manteniendo la precisión y basándote en el CONTEXTO."
)

const ragTemplate = `Actúa como un asistente legal especializado. Usa EXCLUSIVAMENTE la información dentro del bloque CONTEXTO para responder. No inventes información.

Devuelve SOLO un objeto JSON con las claves:
- answer: cadena con una respuesta útil y precisa. Si la información no está en el CONTEXTO, responde exactamente "` + answer.NotFoundSentinel + `".
- key_points: lista con los puntos clave de la respuesta.
- specific_citations: lista de artículos, cláusulas o secciones citadas.
- exact_quotes: lista con 0-2 citas textuales exactas extraídas del CONTEXTO.
- confidence: una etiqueta entre "alta", "media" o "baja".
- missing_info: cadena que describe la información que falta, o vacía.
- cross_references: lista de otras secciones del documento relacionadas.

El JSON debe ser el único contenido de la respuesta, sin explicaciones adicionales.

--- CONTEXTO ---
{contexto}
--- PREGUNTA ---
{pregunta}
`

// ragMessages builds the prompt for a question answered from retrieved context.
func ragMessages(question, context string, clarify bool) []llm.Message {
	prompt := strings.NewReplacer("{contexto}", context, "{pregunta}", question).Replace(ragTemplate)
	if clarify {
		prompt += clarifySuffix
	}
	return []llm.Message{
		{Role: llm.RoleSystem, Content: ragSystemPrompt},
		{Role: llm.RoleUser, Content: prompt},
	}
}

// directMessages asks the model without any document context.
func directMessages(question string) []llm.Message {
	return []llm.Message{
		{Role: llm.RoleSystem, Content: directSystemPrompt},
		{Role: llm.RoleUser, Content: question},
	}
}
