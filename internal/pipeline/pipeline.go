package pipeline

import (
	"context"
	"fmt"

	"github.com/dvloznov/ledger-qa/internal/classify"
	"github.com/dvloznov/ledger-qa/internal/ledger"
	"github.com/dvloznov/ledger-qa/internal/question"
	"github.com/dvloznov/ledger-qa/internal/selector"
	"github.com/dvloznov/ledger-qa/internal/stats"
)

// PipelineStep represents a single step of a pipeline.
type PipelineStep interface {
	Name() string
	Execute(ctx context.Context, state *PipelineState) error
}

// PipelineState holds the shared state across all pipeline steps.
type PipelineState struct {
	Question string
	// History holds earlier questions of a conversation, oldest first.
	History []string

	Dataset *ledger.Dataset
	Summary stats.Summary
	Signals question.Signals
	Payload *selector.Payload
	Answer  string
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps in the pipeline sequentially and stops at the first
// failure.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	for i, step := range p.steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d (%s) failed: %w", i+1, step.Name(), err)
		}
	}
	return nil
}

// NewSnapshotPipeline loads, classifies and aggregates a ledger.
func NewSnapshotPipeline(src RowSource, c *classify.Classifier) *Pipeline {
	return NewPipeline(
		&LoadStep{Source: src},
		&ClassifyStep{Classifier: c},
		&AggregateStep{},
	)
}

// NewContextPipeline selects the context of a question over a loaded
// snapshot. The state must carry the dataset and its summary.
func NewContextPipeline(in *question.Interpreter) *Pipeline {
	return NewPipeline(
		&InterpretStep{Interpreter: in},
		&SelectContextStep{},
	)
}

// NewAnalysisPipeline selects the context of a question and asks the
// analyzer for an answer.
func NewAnalysisPipeline(in *question.Interpreter, a Analyzer) *Pipeline {
	return NewPipeline(
		&InterpretStep{Interpreter: in},
		&SelectContextStep{},
		&GenerateStep{Analyzer: a},
	)
}

// NewDirectAnswerPipeline answers a question without a generator.
func NewDirectAnswerPipeline(opts selector.Options) *Pipeline {
	return NewPipeline(&DirectAnswerStep{Options: opts})
}
