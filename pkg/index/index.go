// Package index is the local retrieval collaborator. Uploaded documents are
// parsed, chunked and stored as one JSON file per document under the index
// root; queries are ranked by lexical overlap.
package index

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/alana-ai/alana/pkg/metrics"
	"github.com/alana-ai/alana/pkg/models"
)

const chunkSuffix = ".chunks.json"

var tokenRe = regexp.MustCompile(`[\p{L}\p{N}_]+`)

// Options configures an Index.
type Options struct {
	Root              string
	AllowedExtensions []string
	MaxFileSize       int64
	ChunkSize         int
	ChunkOverlap      int
	Logger            *zap.Logger
}

// Chunk is one stored passage.
type Chunk struct {
	ID   string `json:"chunk_id"`
	Text string `json:"text"`
	Page *int   `json:"page,omitempty"`
}

// Document is the on-disk form of an ingested file.
type Document struct {
	Source     string    `json:"source"`
	IngestedAt time.Time `json:"ingested_at"`
	Chunks     []Chunk   `json:"chunks"`
}

type entry struct {
	source string
	chunk  Chunk
	tokens map[string]struct{}
}

// Index is safe for concurrent use.
type Index struct {
	opts   Options
	logger *zap.Logger

	mu      sync.RWMutex
	entries []entry
}

// Open creates the root directory if needed and loads every stored document.
// Unreadable document files are skipped with a warning.
func Open(opts Options) (*Index, error) {
	if opts.Root == "" {
		return nil, fmt.Errorf("%w: index root is empty", models.ErrConfiguration)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = 16 << 20
	}
	if len(opts.AllowedExtensions) == 0 {
		opts.AllowedExtensions = []string{".pdf", ".txt", ".docx", ".md"}
	}
	if err := os.MkdirAll(opts.Root, 0o755); err != nil {
		return nil, fmt.Errorf("create index root: %w", err)
	}

	idx := &Index{opts: opts, logger: opts.Logger}
	if err := idx.reload(); err != nil {
		return nil, err
	}
	return idx, nil
}

func (idx *Index) reload() error {
	paths, err := filepath.Glob(filepath.Join(idx.opts.Root, "*"+chunkSuffix))
	if err != nil {
		return fmt.Errorf("list documents: %w", err)
	}
	sort.Strings(paths)

	var entries []entry
	for _, p := range paths {
		doc, err := readDocument(p)
		if err != nil {
			idx.logger.Warn("skipping unreadable document", zap.String("path", p), zap.Error(err))
			continue
		}
		entries = append(entries, toEntries(doc)...)
	}

	idx.mu.Lock()
	idx.entries = entries
	idx.mu.Unlock()
	return nil
}

func readDocument(path string) (Document, error) {
	var doc Document
	data, err := os.ReadFile(path)
	if err != nil {
		return doc, err
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return doc, nil
}

func toEntries(doc Document) []entry {
	out := make([]entry, 0, len(doc.Chunks))
	for _, c := range doc.Chunks {
		out = append(out, entry{source: doc.Source, chunk: c, tokens: tokenSet(c.Text)})
	}
	return out
}

// Ready reports whether any passage is available for retrieval.
func (idx *Index) Ready() bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.entries) > 0
}

// Documents lists the sources currently indexed, in load order.
func (idx *Index) Documents() []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	var out []string
	for _, e := range idx.entries {
		if len(out) == 0 || out[len(out)-1] != e.source {
			out = append(out, e.source)
		}
	}
	return out
}

// Search returns up to k passages ranked by Ochiai overlap with query.
// Scores are distances (1 - overlap) so lower is more relevant.
func (idx *Index) Search(ctx context.Context, query string, k int) ([]models.RetrievalHit, error) {
	if k <= 0 {
		k = 4
	}
	q := tokenSet(query)

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	type scored struct {
		i    int
		dist float64
	}
	ranked := make([]scored, 0, len(idx.entries))
	for i, e := range idx.entries {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		ranked = append(ranked, scored{i, 1 - ochiai(q, e.tokens)})
	}
	sort.SliceStable(ranked, func(a, b int) bool { return ranked[a].dist < ranked[b].dist })
	if k > len(ranked) {
		k = len(ranked)
	}

	hits := make([]models.RetrievalHit, 0, k)
	for _, s := range ranked[:k] {
		e := idx.entries[s.i]
		hits = append(hits, models.RetrievalHit{
			Text: e.chunk.Text,
			Metadata: models.HitMetadata{
				Source:  e.source,
				Page:    e.chunk.Page,
				ChunkID: e.chunk.ID,
			},
			Score: s.dist,
		})
	}
	return hits, nil
}

func tokenSet(s string) map[string]struct{} {
	tokens := tokenRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

// ochiai is |A∩B| / sqrt(|A||B|).
func ochiai(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for t := range a {
		if _, ok := b[t]; ok {
			inter++
		}
	}
	return float64(inter) / math.Sqrt(float64(len(a))*float64(len(b)))
}

// Ingest validates, parses, chunks and stores one uploaded file. size is
// the declared upload size; the body is also capped while reading.
// Re-ingesting a file with the same name replaces it.
func (idx *Index) Ingest(ctx context.Context, filename string, r io.Reader, size int64) (Document, error) {
	name := filepath.Base(strings.TrimSpace(filename))
	ext := strings.ToLower(filepath.Ext(name))

	doc, err := idx.ingest(ctx, name, ext, r, size)
	status := "ok"
	if err != nil {
		status = "error"
	}
	if ext == "" {
		ext = "none"
	}
	metrics.DocumentsIngestedTotal.WithLabelValues(ext, status).Inc()
	return doc, err
}

func (idx *Index) ingest(ctx context.Context, name, ext string, r io.Reader, size int64) (Document, error) {
	if name == "" || name == "." || name == string(filepath.Separator) {
		return Document{}, models.Validation("Nombre de archivo vacío")
	}
	if !slices.Contains(idx.opts.AllowedExtensions, ext) {
		return Document{}, models.Validation(fmt.Sprintf("Tipo no permitido: %s", name))
	}
	limit := idx.opts.MaxFileSize
	if size > limit {
		return Document{}, models.Validation(fmt.Sprintf("Muy grande (máx. %dMB): %s", limit>>20, name))
	}

	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return Document{}, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > limit {
		return Document{}, models.Validation(fmt.Sprintf("Muy grande (máx. %dMB): %s", limit>>20, name))
	}
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}

	pages, err := extract(ext, data, idx.logger)
	if err != nil {
		return Document{}, models.Validation(fmt.Sprintf("No se pudo leer %s: %v", name, err))
	}

	docID := uuid.NewString()
	doc := Document{Source: name, IngestedAt: time.Now().UTC()}
	for _, p := range pages {
		for _, text := range chunkText(p.Text, idx.opts.ChunkSize, idx.opts.ChunkOverlap) {
			c := Chunk{ID: fmt.Sprintf("%s_chunk_%d", docID, len(doc.Chunks)), Text: text}
			if p.Number > 0 {
				n := p.Number
				c.Page = &n
			}
			doc.Chunks = append(doc.Chunks, c)
		}
	}
	if len(doc.Chunks) == 0 {
		return Document{}, models.Validation(fmt.Sprintf("El documento no contiene texto: %s", name))
	}

	if err := idx.write(doc); err != nil {
		return Document{}, err
	}
	if err := idx.reload(); err != nil {
		return Document{}, err
	}
	idx.logger.Info("document indexed",
		zap.String("source", name),
		zap.Int("chunks", len(doc.Chunks)),
		zap.Int("pages", len(pages)),
	)
	return doc, nil
}

func (idx *Index) write(doc Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	target := filepath.Join(idx.opts.Root, doc.Source+chunkSuffix)
	tmp, err := os.CreateTemp(idx.opts.Root, ".ingest-*")
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrPersistence, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: %v", models.ErrPersistence, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %v", models.ErrPersistence, err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("%w: %v", models.ErrPersistence, err)
	}
	return nil
}

// Clear removes every stored document and returns how many were removed.
func (idx *Index) Clear() (int, error) {
	paths, err := filepath.Glob(filepath.Join(idx.opts.Root, "*"+chunkSuffix))
	if err != nil {
		return 0, fmt.Errorf("list documents: %w", err)
	}
	n := 0
	for _, p := range paths {
		if err := os.Remove(p); err != nil {
			return n, fmt.Errorf("%w: %v", models.ErrPersistence, err)
		}
		n++
	}
	return n, idx.reload()
}
