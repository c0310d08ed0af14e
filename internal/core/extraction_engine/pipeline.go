package extraction_engine

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/markdave123-py/Examina/internal/core"
	"github.com/markdave123-py/Examina/internal/logging"
	"github.com/markdave123-py/Examina/internal/models"
)

// Config tunes the extraction pipeline.
//
// ChunkSize:         max characters per completion call (8000).
// InterChunkDelay:   minimum spacing between completion calls; 0 disables pacing.
// CallTimeout:       deadline for a single completion call; 0 means none.
// Concurrency:       chunks in flight at once; 1 processes them in order.
// MinQuestionLength: shorter question texts are dropped.
// Dedupe:            duplicate detection settings.
type Config struct {
	ChunkSize         int
	InterChunkDelay   time.Duration
	CallTimeout       time.Duration
	Concurrency       int
	MinQuestionLength int
	Retry             RetryPolicy
	Dedupe            Deduplicator
}

// DefaultConfig mirrors the production defaults.
func DefaultConfig() Config {
	return Config{
		ChunkSize:         8000,
		InterChunkDelay:   10 * time.Second,
		CallTimeout:       90 * time.Second,
		Concurrency:       1,
		MinQuestionLength: DefaultMinQuestionLength,
		Retry:             DefaultRetryPolicy(),
	}
}

// Document is the already-extracted text plus the metadata prompts need.
type Document struct {
	Text     string
	ExamType string
	FileName string
	Title    string // optional; wins over generated titles
}

// Result is what an extraction hands back to the caller.
type Result struct {
	Questions    []models.Question `json:"questions"`
	Title        string            `json:"title"`
	TitleSource  string            `json:"title_source"` // "provided", "ai" or "template"
	UsedTemplate bool              `json:"used_template"`
	ChunksTotal  int               `json:"chunks_total"`
	ChunksFailed int               `json:"chunks_failed"`
	FailedOver   bool              `json:"failed_over"`
}

// Option customises a Pipeline.
type Option func(*Pipeline)

func WithLogger(l *zap.Logger) Option { return func(p *Pipeline) { p.log = logging.OrNop(l) } }

// WithSleeper replaces the backoff wait, typically with a recorder in tests.
func WithSleeper(s Sleeper) Option { return func(p *Pipeline) { p.sleep = s } }

func WithClock(now func() time.Time) Option { return func(p *Pipeline) { p.now = now } }

// WithAttemptHook observes every completion attempt. It may be called from
// several goroutines when Concurrency > 1.
func WithAttemptHook(fn func(Attempt)) Option { return func(p *Pipeline) { p.onAttempt = fn } }

func WithParser(rp *ResponseParser) Option { return func(p *Pipeline) { p.parser = rp } }

// Pipeline turns document text into a deduplicated, validated question set.
type Pipeline struct {
	cfg       Config
	selector  core.ModelSelector
	parser    *ResponseParser
	retry     *RetryOrchestrator
	sleep     Sleeper
	onAttempt func(Attempt)
	now       func() time.Time
	log       *zap.Logger
}

func NewPipeline(selector core.ModelSelector, cfg Config, opts ...Option) *Pipeline {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	p := &Pipeline{
		cfg:      cfg,
		selector: selector,
		sleep:    SleepContext,
		now:      time.Now,
		log:      zap.NewNop(),
	}
	for _, o := range opts {
		o(p)
	}
	if p.parser == nil {
		p.parser = NewResponseParser(p.log)
	}
	p.retry = NewRetryOrchestrator(selector, cfg.Retry, p.sleep, cfg.CallTimeout, p.log)
	p.retry.onAttempt = p.onAttempt
	p.retry.now = p.now
	return p
}

// Extract runs the whole pipeline. The only error it returns is
// core.ErrNotConfigured; every other failure degrades into fewer questions,
// template questions or a template title.
func (p *Pipeline) Extract(ctx context.Context, doc Document) (*Result, error) {
	if p.selector == nil || !p.selector.Configured() {
		return nil, core.ErrNotConfigured
	}

	start := p.now()
	run := &Run{}
	chunks := chunkDocument(doc.Text, p.cfg.ChunkSize)
	pacer := newPacer(p.cfg.InterChunkDelay)

	p.log.Info("extract.start",
		zap.String("file", doc.FileName),
		zap.String("exam_type", doc.ExamType),
		zap.Int("text_len", len(doc.Text)),
		zap.Int("chunks", len(chunks)))

	perChunk := make([][]Candidate, len(chunks))
	failed := make([]bool, len(chunks))

	var g errgroup.Group
	g.SetLimit(p.cfg.Concurrency)
	for _, ch := range chunks {
		ch := ch
		g.Go(func() error {
			if err := p.pace(ctx, pacer); err != nil {
				p.log.Warn("extract.chunk.skipped", zap.Int("chunk", ch.Index), zap.Error(err))
				failed[ch.Index] = true
				return nil
			}
			cands, err := p.processChunk(ctx, run, doc, ch)
			if err != nil {
				failed[ch.Index] = true
			}
			perChunk[ch.Index] = cands
			return nil
		})
	}
	_ = g.Wait()

	var all []Candidate
	for _, c := range perChunk {
		all = append(all, c...)
	}

	normalizer := Normalizer{MinLength: p.cfg.MinQuestionLength, Now: p.now}
	questions := FilterByType(p.cfg.Dedupe.Dedupe(normalizer.Normalize(all)))

	res := &Result{ChunksTotal: len(chunks)}
	for _, f := range failed {
		if f {
			res.ChunksFailed++
		}
	}

	if len(questions) == 0 {
		p.log.Warn("extract.template_fallback",
			zap.Int("candidates", len(all)),
			zap.Int("chunks_failed", res.ChunksFailed))
		questions = GenerateTemplates(doc.Text, doc.ExamType, doc.FileName, p.now())
		res.UsedTemplate = true
	}
	for i := range questions {
		questions[i].Position = i
	}
	res.Questions = questions

	firstChunk := ""
	if len(chunks) > 0 {
		firstChunk = chunks[0].Text
	}
	res.Title, res.TitleSource = p.title(ctx, run, pacer, doc, firstChunk)
	res.FailedOver = run.FailedOver()

	p.log.Info("extract.done",
		zap.String("file", doc.FileName),
		zap.Int("questions", len(res.Questions)),
		zap.Int("candidates", len(all)),
		zap.Int("chunks_failed", res.ChunksFailed),
		zap.Bool("used_template", res.UsedTemplate),
		zap.String("title_source", res.TitleSource),
		zap.Duration("elapsed", p.now().Sub(start)))

	return res, nil
}

func (p *Pipeline) processChunk(ctx context.Context, run *Run, doc Document, ch RawChunk) ([]Candidate, error) {
	raw, err := p.retry.CallWithRetry(ctx, run, Call{Stage: "questions", Chunk: ch.Index, Prompt: questionPrompt(doc, ch)})
	if err != nil {
		p.log.Warn("extract.chunk.failed", zap.Int("chunk", ch.Index), zap.Int("total", ch.Total), zap.Error(err))
		return nil, err
	}

	cands := p.parser.Parse(raw)
	for i := range cands {
		cands[i].Chunk = ch.Index
	}
	p.log.Info("extract.chunk.done", zap.Int("chunk", ch.Index), zap.Int("total", ch.Total), zap.Int("candidates", len(cands)))
	return cands, nil
}

// title prefers a caller-supplied title, then a model suggestion from the
// first chunk, then a template title.
func (p *Pipeline) title(ctx context.Context, run *Run, pacer *rate.Limiter, doc Document, firstChunk string) (string, string) {
	if t := strings.TrimSpace(doc.Title); t != "" {
		return prefix(t, maxTitleLength), "provided"
	}
	if strings.TrimSpace(firstChunk) == "" {
		return TemplateTitle(doc.Text), "template"
	}

	if err := p.pace(ctx, pacer); err == nil {
		raw, err := p.retry.CallWithRetry(ctx, run, Call{Stage: "title", Chunk: 0, Prompt: titlePrompt(doc, prefix(firstChunk, titleExcerptLength))})
		if err == nil {
			if t := cleanTitle(raw); t != "" {
				return t, "ai"
			}
		} else {
			p.log.Warn("extract.title.failed", zap.Error(err))
		}
	}
	return TemplateTitle(doc.Text), "template"
}

// pace reserves the next call slot and waits for it through the pipeline's
// sleeper and clock.
func (p *Pipeline) pace(ctx context.Context, pacer *rate.Limiter) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	now := p.now()
	r := pacer.ReserveN(now, 1)
	if d := r.DelayFrom(now); d > 0 {
		if err := p.sleep(ctx, d); err != nil {
			r.CancelAt(p.now())
			return err
		}
	}
	return nil
}

func newPacer(spacing time.Duration) *rate.Limiter {
	if spacing <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(spacing), 1)
}
