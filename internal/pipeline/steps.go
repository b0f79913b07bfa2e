package pipeline

import (
	"context"
	"errors"

	"github.com/dvloznov/ledger-qa/internal/classify"
	"github.com/dvloznov/ledger-qa/internal/ledger"
	"github.com/dvloznov/ledger-qa/internal/logger"
	"github.com/dvloznov/ledger-qa/internal/question"
	"github.com/dvloznov/ledger-qa/internal/selector"
	"github.com/dvloznov/ledger-qa/internal/stats"
)

var (
	// ErrNoDataset is returned by steps that run before a dataset was loaded.
	ErrNoDataset = errors.New("no dataset loaded")
	// ErrNoPayload is returned by the generate step when no context was selected.
	ErrNoPayload = errors.New("no context payload selected")
)

// LoadStep reads the raw rows and normalizes them into a dataset.
type LoadStep struct {
	Source RowSource
}

func (s *LoadStep) Name() string { return "load" }

func (s *LoadStep) Execute(ctx context.Context, state *PipelineState) error {
	log := logger.FromContext(ctx).With().Str("source", s.Source.Name()).Logger()

	rows, err := s.Source.Rows(ctx)
	if err != nil {
		var loadErr *ledger.DataLoadError
		if errors.As(err, &loadErr) {
			return err
		}
		return ledger.NewDataLoadError(s.Source.Name(), err)
	}

	ds := ledger.Normalize(s.Source.Name(), rows)
	for _, w := range ds.Warnings {
		log.Warn().
			Int("row", w.Row).
			Str("field", w.Field).
			Str("value", w.Value).
			Err(w.Err).
			Msg("Unparseable value replaced with null")
	}
	log.Info().Int("records", ds.Len()).Int("warnings", len(ds.Warnings)).Msg("Ledger loaded")

	state.Dataset = ds
	return nil
}

// ClassifyStep labels every record with a transaction type and category.
type ClassifyStep struct {
	Classifier *classify.Classifier
}

func (s *ClassifyStep) Name() string { return "classify" }

func (s *ClassifyStep) Execute(ctx context.Context, state *PipelineState) error {
	if state.Dataset == nil {
		return ErrNoDataset
	}
	state.Dataset = s.Classifier.Apply(state.Dataset)
	return nil
}

// AggregateStep computes the summary statistics of the dataset.
type AggregateStep struct{}

func (s *AggregateStep) Name() string { return "aggregate" }

func (s *AggregateStep) Execute(ctx context.Context, state *PipelineState) error {
	if state.Dataset == nil {
		return ErrNoDataset
	}
	state.Summary = stats.Aggregate(state.Dataset)

	log := logger.FromContext(ctx)
	log.Debug().
		Int("transactions", state.Summary.TotalTransactions).
		Int("types", len(state.Summary.TransactionTypes)).
		Int("categories", len(state.Summary.Categories)).
		Int("months", len(state.Summary.Monthly)).
		Msg("Statistics aggregated")
	return nil
}

// InterpretStep extracts the signals of the question.
type InterpretStep struct {
	Interpreter *question.Interpreter
}

func (s *InterpretStep) Name() string { return "interpret" }

func (s *InterpretStep) Execute(ctx context.Context, state *PipelineState) error {
	state.Signals = s.Interpreter.Interpret(state.Question)
	return nil
}

// SelectContextStep builds the payload for the generator.
type SelectContextStep struct{}

func (s *SelectContextStep) Name() string { return "select-context" }

func (s *SelectContextStep) Execute(ctx context.Context, state *PipelineState) error {
	if state.Dataset == nil {
		return ErrNoDataset
	}
	payload := selector.BuildContext(state.Dataset, state.Summary, state.Signals, state.Question)
	payload.PreviousQuestions = append([]string(nil), state.History...)
	state.Payload = &payload
	return nil
}

// DirectAnswerStep answers the question with the rule-based responder.
type DirectAnswerStep struct {
	Options selector.Options
}

func (s *DirectAnswerStep) Name() string { return "direct-answer" }

func (s *DirectAnswerStep) Execute(ctx context.Context, state *PipelineState) error {
	if state.Dataset == nil {
		return ErrNoDataset
	}
	state.Answer = selector.Direct(state.Dataset, state.Question, s.Options)
	return nil
}

// GenerateStep hands the selected payload to the analyzer.
type GenerateStep struct {
	Analyzer Analyzer
}

func (s *GenerateStep) Name() string { return "generate" }

func (s *GenerateStep) Execute(ctx context.Context, state *PipelineState) error {
	if state.Payload == nil {
		return ErrNoPayload
	}
	answer, err := s.Analyzer.Analyze(ctx, *state.Payload)
	if err != nil {
		return err
	}
	state.Answer = answer
	return nil
}
