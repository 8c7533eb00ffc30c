// Package answer extracts a structured answer from free-form model output.
// Parsing never fails: output that is not a JSON object degrades to plain text.
package answer

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/alana-ai/alana/pkg/models"
)

// NotFoundSentinel is what the model is told to answer when the context
// has nothing relevant. It is never shown to users.
const NotFoundSentinel = "NO_ENCONTRADO"

// DefaultMaxLength bounds the runes kept from unstructured output.
const DefaultMaxLength = 2000

// Path records which step of the fallback chain produced the answer.
type Path string

const (
	PathJSON      Path = "json"
	PathExtracted Path = "extracted"
	PathField     Path = "field"
	PathText      Path = "text"
)

var (
	fenceRe       = regexp.MustCompile("```\\w*")
	answerFieldRe = regexp.MustCompile(`"answer"\s*:\s*"((?:[^"\\]|\\.)*)"`)
)

// Parse extracts an Answer from raw model output.
func Parse(raw string) models.Answer {
	a, _ := ParseWithLimit(raw, DefaultMaxLength)
	return a
}

// ParseWithLimit is Parse with an explicit bound for unstructured text.
// It also reports which fallback step succeeded.
//
// Sources and Confidence are left unset when the model did not supply
// them so the caller can fill them from retrieval.
func ParseWithLimit(raw string, limit int) (models.Answer, Path) {
	if limit <= 0 {
		limit = DefaultMaxLength
	}

	var (
		a    models.Answer
		path Path
	)
	if obj, ok := decodeObject(raw); ok {
		a, path = obj.answer(), PathJSON
	} else if obj, ok := decodeObject(extractObject(raw)); ok {
		a, path = obj.answer(), PathExtracted
	} else if m := answerFieldRe.FindStringSubmatch(raw); m != nil {
		a, path = models.Answer{Text: unescape(m[1])}, PathField
	} else {
		a, path = models.Answer{Text: truncate(strings.TrimSpace(raw), limit)}, PathText
	}

	if IsNotFound(a.Text) {
		a.Text = Apology(a.MissingInfo)
	}
	return a, path
}

// extractObject strips code fences and returns the text between the first
// '{' and the last '}', or "" if there is none.
func extractObject(raw string) string {
	clean := fenceRe.ReplaceAllString(strings.TrimSpace(raw), "")
	start := strings.Index(clean, "{")
	end := strings.LastIndex(clean, "}")
	if start == -1 || end <= start {
		return ""
	}
	return clean[start : end+1]
}

func unescape(s string) string {
	if v, err := strconv.Unquote(`"` + s + `"`); err == nil {
		return v
	}
	return s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// rawObject mirrors the JSON object the model is asked for. Fields are kept
// raw so wrong types degrade instead of failing the whole decode.
type rawObject struct {
	Answer            json.RawMessage `json:"answer"`
	Response          json.RawMessage `json:"response"`
	KeyPoints         json.RawMessage `json:"key_points"`
	SpecificCitations json.RawMessage `json:"specific_citations"`
	ExactQuotes       json.RawMessage `json:"exact_quotes"`
	Evidence          json.RawMessage `json:"evidence"`
	Confidence        json.RawMessage `json:"confidence"`
	MissingInfo       json.RawMessage `json:"missing_info"`
	CrossReferences   json.RawMessage `json:"cross_references"`
	Sources           json.RawMessage `json:"sources"`
}

func decodeObject(s string) (rawObject, bool) {
	var obj rawObject
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "{") {
		return obj, false
	}
	if err := json.Unmarshal([]byte(s), &obj); err != nil {
		return obj, false
	}
	return obj, true
}

func (o rawObject) answer() models.Answer {
	text := stringField(o.Answer)
	if text == "" {
		text = stringField(o.Response)
	}
	quotes := listField(o.ExactQuotes)
	if len(quotes) == 0 {
		quotes = listField(o.Evidence)
	}
	return models.Answer{
		Text:              text,
		KeyPoints:         listField(o.KeyPoints),
		SpecificCitations: listField(o.SpecificCitations),
		ExactQuotes:       quotes,
		Confidence:        models.ParseConfidence(stringField(o.Confidence)),
		MissingInfo:       stringField(o.MissingInfo),
		CrossReferences:   listField(o.CrossReferences),
		Sources:           sourcesField(o.Sources),
	}
}

// stringField returns a JSON string as is, null or absent as "", and any
// other value in its compact JSON form.
func stringField(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// listField accepts a list, or a single string which is wrapped. Empty
// strings are dropped; non-string items are rendered as text.
func listField(raw json.RawMessage) []string {
	out := []string{}
	if len(raw) == 0 || string(raw) == "null" {
		return out
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		if s := strings.TrimSpace(stringField(raw)); s != "" {
			out = append(out, s)
		}
		return out
	}
	for _, item := range items {
		if s := strings.TrimSpace(stringField(item)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// sourcesField returns nil when the model gave no sources list.
func sourcesField(raw json.RawMessage) []models.Source {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var items []map[string]any
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	out := make([]models.Source, 0, len(items))
	for _, item := range items {
		src := models.Source{
			Snippet: anyString(item["text_snippet"]),
			Source:  anyString(item["source"]),
			Score:   anyFloat(item["score"]),
		}
		if p, ok := anyInt(item["page"]); ok {
			src.Page = &p
		}
		out = append(out, src)
	}
	return out
}

func anyString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}

func anyFloat(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case string:
		f, _ := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f
	}
	return 0
}

func anyInt(v any) (int, bool) {
	switch x := v.(type) {
	case float64:
		return int(x), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(x))
		return n, err == nil
	}
	return 0, false
}
