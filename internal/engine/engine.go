package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/dvloznov/ledger-qa/internal/classify"
	"github.com/dvloznov/ledger-qa/internal/ledger"
	"github.com/dvloznov/ledger-qa/internal/logger"
	"github.com/dvloznov/ledger-qa/internal/pipeline"
	"github.com/dvloznov/ledger-qa/internal/question"
	"github.com/dvloznov/ledger-qa/internal/selector"
	"github.com/dvloznov/ledger-qa/internal/stats"
	"github.com/patrickmn/go-cache"
)

// DefaultTTL is used when Options.TTL is not positive.
const DefaultTTL = 5 * time.Minute

// ErrNoGenerator is returned by Analyze when no analyzer is configured.
var ErrNoGenerator = errors.New("no generator configured")

// Snapshot is a loaded, classified and aggregated ledger. It is shared by
// concurrent readers and never modified.
type Snapshot struct {
	Dataset  *ledger.Dataset
	Summary  stats.Summary
	LoadedAt time.Time
}

// Options configure an Engine.
type Options struct {
	Answer selector.Options
	TTL    time.Duration
	// Analyzer answers open questions. Analyze fails without one.
	Analyzer pipeline.Analyzer
}

// Engine answers questions over one ledger source.
type Engine struct {
	src         pipeline.RowSource
	classifier  *classify.Classifier
	interpreter *question.Interpreter
	opts        Options

	snapshots *cache.Cache
	loadMu    sync.Mutex
}

func New(src pipeline.RowSource, c *classify.Classifier, opts Options) *Engine {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	return &Engine{
		src:         src,
		classifier:  c,
		interpreter: question.NewInterpreter(c.Categories()),
		opts:        opts,
		snapshots:   cache.New(opts.TTL, 2*opts.TTL),
	}
}

// SourceName identifies the ledger source.
func (e *Engine) SourceName() string { return e.src.Name() }

// HasAnalyzer reports whether Analyze can be used.
func (e *Engine) HasAnalyzer() bool { return e.opts.Analyzer != nil }

// Categories returns the declared category labels in priority order.
func (e *Engine) Categories() []string { return e.classifier.Categories() }

// Snapshot returns the cached snapshot, loading it when it is missing or
// expired. Concurrent callers wait for a single load.
func (e *Engine) Snapshot(ctx context.Context) (*Snapshot, error) {
	key := e.src.Name()
	if s, ok := e.snapshots.Get(key); ok {
		return s.(*Snapshot), nil
	}

	e.loadMu.Lock()
	defer e.loadMu.Unlock()

	if s, ok := e.snapshots.Get(key); ok {
		return s.(*Snapshot), nil
	}

	state := &pipeline.PipelineState{}
	if err := pipeline.NewSnapshotPipeline(e.src, e.classifier).Execute(ctx, state); err != nil {
		return nil, err
	}

	snap := &Snapshot{Dataset: state.Dataset, Summary: state.Summary, LoadedAt: time.Now()}
	e.snapshots.Set(key, snap, cache.DefaultExpiration)

	log := logger.FromContext(ctx)
	log.Info().
		Str("source", key).
		Int("records", snap.Dataset.Len()).
		Dur("ttl", e.opts.TTL).
		Msg("Snapshot cached")
	return snap, nil
}

// Invalidate drops the cached snapshot so the next read reloads the source.
// It waits for a load in flight so that load cannot re-cache stale rows.
func (e *Engine) Invalidate() {
	e.loadMu.Lock()
	defer e.loadMu.Unlock()
	e.snapshots.Delete(e.src.Name())
}

func (e *Engine) run(ctx context.Context, p *pipeline.Pipeline, q string, previous []string) (*pipeline.PipelineState, error) {
	snap, err := e.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	state := &pipeline.PipelineState{
		Question: q,
		History:  previous,
		Dataset:  snap.Dataset,
		Summary:  snap.Summary,
	}
	if err := p.Execute(ctx, state); err != nil {
		return nil, err
	}
	return state, nil
}

// Ask answers q in direct-answer mode.
func (e *Engine) Ask(ctx context.Context, q string) (string, error) {
	state, err := e.run(ctx, pipeline.NewDirectAnswerPipeline(e.opts.Answer), q, nil)
	if err != nil {
		return "", err
	}
	return state.Answer, nil
}

// Context builds the generator payload for q.
func (e *Engine) Context(ctx context.Context, q string) (selector.Payload, error) {
	state, err := e.run(ctx, pipeline.NewContextPipeline(e.interpreter), q, nil)
	if err != nil {
		return selector.Payload{}, err
	}
	return *state.Payload, nil
}

// Analyze asks the configured analyzer about q. previous holds earlier
// questions of the conversation, oldest first.
func (e *Engine) Analyze(ctx context.Context, q string, previous []string) (string, error) {
	if e.opts.Analyzer == nil {
		return "", ErrNoGenerator
	}
	state, err := e.run(ctx, pipeline.NewAnalysisPipeline(e.interpreter, e.opts.Analyzer), q, previous)
	if err != nil {
		return "", err
	}
	return state.Answer, nil
}

// Summary returns the statistics of the current snapshot.
func (e *Engine) Summary(ctx context.Context) (stats.Summary, error) {
	snap, err := e.Snapshot(ctx)
	if err != nil {
		return stats.Summary{}, err
	}
	return snap.Summary.Clone(), nil
}

// RecordFilter narrows Records. Empty labels match everything and a
// non-positive Limit returns all matches. Last keeps the final records
// instead of the first ones.
type RecordFilter struct {
	Category string
	Type     string
	Limit    int
	Last     bool
}

// Records returns deep copies of the classified records matching f, in dataset
// order.
func (e *Engine) Records(ctx context.Context, f RecordFilter) ([]ledger.Record, error) {
	snap, err := e.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]ledger.Record, 0)
	for _, rec := range snap.Dataset.Records {
		if f.Category != "" && !strings.EqualFold(rec.Category, f.Category) {
			continue
		}
		if f.Type != "" && !strings.EqualFold(rec.TransactionType, f.Type) {
			continue
		}
		out = append(out, rec.Clone())
	}

	if f.Limit > 0 && len(out) > f.Limit {
		if f.Last {
			out = out[len(out)-f.Limit:]
		} else {
			out = out[:f.Limit]
		}
	}
	return out, nil
}
