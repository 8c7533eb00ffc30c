// Package orchestrator answers one question at a time by composing the
// fingerprint, response cache, retrieval post-processor, language model and
// answer parser.
//
// Per question the orchestrator moves through these states:
//
//	empty      -> fixed prompt, nothing else is called
//	trivial    -> canned local response
//	cache hit  -> cached answer returned verbatim
//	no index   -> direct model call, then local fallback
//	retrieval  -> process hits, prompt, model, parse, cache
//
// A failed model call on the retrieval path re-checks the cache once
// before returning the unavailable message.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/alana-ai/alana/pkg/answer"
	"github.com/alana-ai/alana/pkg/cache"
	"github.com/alana-ai/alana/pkg/intent"
	"github.com/alana-ai/alana/pkg/llm"
	"github.com/alana-ai/alana/pkg/metrics"
	"github.com/alana-ai/alana/pkg/models"
	"github.com/alana-ai/alana/pkg/retrieval"
)

// User-facing messages.
const (
	EmptyPrompt        = "Por favor escribe algo 😅"
	UnavailableMessage = "Error: no se pudo conectar al servicio de IA. Intenta de nuevo más tarde."
)

// Cache types reported with cached responses.
const (
	CacheTypeExact    = "exact"
	CacheTypeInflight = "inflight"
)

const sideEffectTimeout = 5 * time.Second

// Retriever is the retrieval collaborator. Scores are distances.
type Retriever interface {
	Search(ctx context.Context, query string, k int) ([]models.RetrievalHit, error)
	// Ready reports whether an index exists to search.
	Ready() bool
}

// Fingerprinter identifies the current corpus.
type Fingerprinter interface {
	Fingerprint() string
}

// ConversationLog durably records answered questions.
type ConversationLog interface {
	Append(ctx context.Context, c models.Conversation) error
}

// UsageRecorder records tokens spent per model call.
type UsageRecorder interface {
	Record(ctx context.Context, rec models.UsageRecord) error
}

// Options wires an Orchestrator. Cache, Retriever, Log and Usage may be nil.
type Options struct {
	Cache         *cache.Cache
	Retriever     Retriever
	Model         llm.Completer
	Fingerprint   Fingerprinter
	Log           ConversationLog
	Usage         UsageRecorder
	Responder     *intent.Responder
	Policy        retrieval.Policy
	MaxAnswerSize int
	Logger        *zap.Logger
	Now           func() time.Time
}

// Orchestrator is safe for concurrent use.
type Orchestrator struct {
	cache       *cache.Cache
	retriever   Retriever
	model       llm.Completer
	fingerprint Fingerprinter
	log         ConversationLog
	usage       UsageRecorder
	responder   *intent.Responder
	policy      retrieval.Policy
	maxAnswer   int
	logger      *zap.Logger
	now         func() time.Time

	flights singleflight.Group
	wg      sync.WaitGroup
}

// New creates an Orchestrator.
func New(opts Options) *Orchestrator {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Responder == nil {
		opts.Responder = intent.NewResponder(nil, nil)
	}
	if opts.Policy == (retrieval.Policy{}) {
		opts.Policy = retrieval.DefaultPolicy()
	}
	if opts.MaxAnswerSize <= 0 {
		opts.MaxAnswerSize = answer.DefaultMaxLength
	}
	return &Orchestrator{
		cache:       opts.Cache,
		retriever:   opts.Retriever,
		model:       opts.Model,
		fingerprint: opts.Fingerprint,
		log:         opts.Log,
		usage:       opts.Usage,
		responder:   opts.Responder,
		policy:      opts.Policy,
		maxAnswer:   opts.MaxAnswerSize,
		logger:      opts.Logger,
		now:         opts.Now,
	}
}

// result is what one computation produces before per-caller bookkeeping.
type result struct {
	answer  models.Answer
	outcome models.Outcome
	cached  bool
	errMsg  string
}

// Ask answers question. The returned error is non-nil only when ctx ended
// before an answer was available; every collaborator failure degrades to a
// response instead.
func (o *Orchestrator) Ask(ctx context.Context, question string) (models.Response, error) {
	start := o.now()
	q := strings.TrimSpace(question)

	var (
		r   result
		key string
		err error
	)
	switch {
	case q == "":
		r = result{answer: textAnswer(EmptyPrompt), outcome: models.OutcomeEmpty}
	default:
		if cat, ok := intent.Classify(q); ok {
			r = result{answer: textAnswer(o.responder.Respond(cat)), outcome: models.OutcomeTrivial}
			break
		}
		r, key, err = o.answer(ctx, q)
	}
	if err != nil {
		return models.Response{}, err
	}

	elapsed := o.now().Sub(start)
	metrics.QuestionsTotal.WithLabelValues(string(r.outcome)).Inc()
	metrics.QuestionDuration.WithLabelValues(string(r.outcome)).Observe(elapsed.Seconds())

	resp := models.Response{
		Answer:       r.answer,
		Outcome:      r.outcome,
		Cached:       r.cached,
		ResponseTime: fmt.Sprintf("%.2fs", elapsed.Seconds()),
		Timestamp:    o.now().UTC(),
		Error:        r.errMsg,
	}
	if r.cached {
		resp.CacheType = CacheTypeExact
		if r.outcome == models.OutcomeAnswered {
			resp.CacheType = CacheTypeInflight
		}
	}

	o.logger.Debug("question answered",
		zap.String("outcome", string(r.outcome)),
		zap.Bool("cached", r.cached),
		zap.String("cache_key", key),
		zap.Duration("elapsed", elapsed),
	)
	if r.outcome != models.OutcomeEmpty && r.outcome != models.OutcomeTrivial {
		o.appendConversation(q, resp, elapsed)
	}
	return resp, nil
}

// answer runs everything past the local short-circuits.
func (o *Orchestrator) answer(ctx context.Context, q string) (result, string, error) {
	if o.retriever == nil || !o.retriever.Ready() {
		r, err := o.direct(ctx, q)
		return r, "", err
	}

	fp := ""
	if o.fingerprint != nil {
		fp = o.fingerprint.Fingerprint()
	}
	key := cache.BuildKey(q, fp)

	if e, ok := o.lookup(key); ok {
		return cacheHit(e), key, nil
	}

	led := false
	ch := o.flights.DoChan(key, func() (any, error) {
		led = true
		return o.retrieve(ctx, q, key)
	})
	select {
	case <-ctx.Done():
		return result{}, key, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			if isContextErr(res.Err) && ctx.Err() == nil {
				// The leading caller gave up; this one is still waiting.
				r, err := o.retrieve(ctx, q, key)
				return r, key, err
			}
			return result{}, key, res.Err
		}
		r := res.Val.(result)
		if res.Shared && !led && r.outcome == models.OutcomeAnswered {
			r.cached = true
		}
		return r, key, nil
	}
}

func (o *Orchestrator) lookup(key string) (models.CacheEntry, bool) {
	if o.cache == nil {
		return models.CacheEntry{}, false
	}
	return o.cache.Get(key)
}

// retrieve is the retrieval path. It runs at most once per key at a time.
func (o *Orchestrator) retrieve(ctx context.Context, q, key string) (result, error) {
	if e, ok := o.lookup(key); ok {
		return cacheHit(e), nil
	}

	clarify := intent.IsClarify(q)
	hits, err := o.retriever.Search(ctx, q, o.policy.K(clarify))
	if err != nil {
		if ctx.Err() != nil {
			return result{}, ctx.Err()
		}
		o.logger.Warn("retrieval failed, answering without context", zap.Error(err))
		return o.direct(ctx, q)
	}

	processed := retrieval.Process(hits, o.policy)
	metrics.RetrievalHits.Observe(float64(processed.Used))

	comp, err := o.complete(ctx, ragMessages(q, processed.Context, clarify))
	if err != nil {
		if ctx.Err() != nil {
			return result{}, ctx.Err()
		}
		o.logger.Warn("model call failed", zap.String("cache_key", key), zap.Error(err))
		if e, ok := o.lookup(key); ok {
			return cacheHit(e), nil
		}
		return result{
			answer:  textAnswer(UnavailableMessage),
			outcome: models.OutcomeUnavailable,
			errMsg:  err.Error(),
		}, nil
	}

	a, path := answer.ParseWithLimit(comp.Text, o.maxAnswer)
	if path != answer.PathJSON {
		o.logger.Debug("model output repaired", zap.String("path", string(path)))
	}
	if a.Confidence == "" {
		a.Confidence = processed.Confidence
	}
	if len(a.Sources) == 0 {
		a.Sources = processed.Sources
	}
	normalizeLists(&a)

	o.recordUsage(comp, key)

	// The caller may have gone while the model was answering.
	if err := ctx.Err(); err != nil {
		return result{}, err
	}
	if o.cache != nil {
		o.cache.Put(key, a)
	}
	return result{answer: a, outcome: models.OutcomeAnswered}, nil
}

// direct asks the model without context and falls back to a local response.
func (o *Orchestrator) direct(ctx context.Context, q string) (result, error) {
	comp, err := o.complete(ctx, directMessages(q))
	if err == nil {
		o.recordUsage(comp, "")
		text := strings.TrimSpace(comp.Text)
		if len([]rune(text)) > o.maxAnswer {
			text = string([]rune(text)[:o.maxAnswer])
		}
		return result{answer: textAnswer(text), outcome: models.OutcomeDirect}, nil
	}
	if ctx.Err() != nil {
		return result{}, ctx.Err()
	}
	o.logger.Warn("direct model call failed, using local response", zap.Error(err))
	return result{
		answer:  textAnswer(o.responder.Respond(intent.NotUnderstood)),
		outcome: models.OutcomeLocalFallback,
	}, nil
}

func (o *Orchestrator) complete(ctx context.Context, messages []llm.Message) (llm.Completion, error) {
	if o.model == nil {
		return llm.Completion{}, fmt.Errorf("no language model configured: %w", models.ErrCollaboratorUnavailable)
	}
	return o.model.Complete(ctx, messages)
}

func (o *Orchestrator) recordUsage(comp llm.Completion, key string) {
	if o.usage == nil || comp.Usage.TotalTokens == 0 {
		return
	}
	rec := models.UsageRecord{
		Provider:         comp.Provider,
		Model:            comp.Model,
		CacheKey:         key,
		PromptTokens:     comp.Usage.PromptTokens,
		CompletionTokens: comp.Usage.CompletionTokens,
		TotalTokens:      comp.Usage.TotalTokens,
		CreatedAt:        o.now().UTC(),
	}
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
		defer cancel()
		if err := o.usage.Record(ctx, rec); err != nil {
			o.logger.Warn("usage record failed", zap.Error(err))
		}
	}()
}

func (o *Orchestrator) appendConversation(q string, resp models.Response, elapsed time.Duration) {
	if o.log == nil {
		return
	}
	c := models.Conversation{
		Question:        q,
		Answer:          resp.Text,
		Sources:         resp.Sources,
		Confidence:      resp.Confidence,
		Citations:       resp.SpecificCitations,
		CrossReferences: resp.CrossReferences,
		Outcome:         resp.Outcome,
		Cached:          resp.Cached,
		LatencyMs:       elapsed.Milliseconds(),
		CreatedAt:       resp.Timestamp,
	}
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
		defer cancel()
		if err := o.log.Append(ctx, c); err != nil {
			o.logger.Warn("conversation log append failed", zap.Error(err))
		}
	}()
}

// Wait blocks until background log and usage writes have finished.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

func cacheHit(e models.CacheEntry) result {
	a := e.Answer
	normalizeLists(&a)
	return result{answer: a, outcome: models.OutcomeCacheHit, cached: true}
}

func textAnswer(text string) models.Answer {
	a := models.Answer{Text: text, Sources: []models.Source{}}
	normalizeLists(&a)
	return a
}

// normalizeLists makes absent lists serialize as [] rather than null.
func normalizeLists(a *models.Answer) {
	if a.Sources == nil {
		a.Sources = []models.Source{}
	}
	if a.KeyPoints == nil {
		a.KeyPoints = []string{}
	}
	if a.SpecificCitations == nil {
		a.SpecificCitations = []string{}
	}
	if a.ExactQuotes == nil {
		a.ExactQuotes = []string{}
	}
	if a.CrossReferences == nil {
		a.CrossReferences = []string{}
	}
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
