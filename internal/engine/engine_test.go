package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/ledger-qa/internal/classify"
	"github.com/dvloznov/ledger-qa/internal/ledger"
	"github.com/dvloznov/ledger-qa/internal/selector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockSource is a mock implementation of pipeline.RowSource for testing.
type MockSource struct {
	RowsFunc func(ctx context.Context) ([]ledger.RawRow, error)
	loads    atomic.Int32
}

func (m *MockSource) Name() string { return "mock.csv" }

func (m *MockSource) Rows(ctx context.Context) ([]ledger.RawRow, error) {
	m.loads.Add(1)
	return m.RowsFunc(ctx)
}

// MockAnalyzer is a mock implementation of pipeline.Analyzer for testing.
type MockAnalyzer struct {
	AnalyzeFunc func(ctx context.Context, p selector.Payload) (string, error)
}

func (m *MockAnalyzer) Analyze(ctx context.Context, p selector.Payload) (string, error) {
	return m.AnalyzeFunc(ctx, p)
}

func strPtr(s string) *string { return &s }

func sampleRows() []ledger.RawRow {
	return []ledger.RawRow{
		{Date: "01/06/25", Description: strPtr("UPI payment to grocery store"), Amount: "-500"},
		{Date: "02/06/25", Description: strPtr("Salary credit"), Amount: "5000"},
		{Date: "03/06/25", Description: strPtr("Netflix subscription"), Amount: "-199"},
		{Date: "04/06/25", Description: strPtr("ATM withdrawal"), Amount: "-1000"},
	}
}

func newSampleEngine(opts Options) (*Engine, *MockSource) {
	src := &MockSource{RowsFunc: func(ctx context.Context) ([]ledger.RawRow, error) { return sampleRows(), nil }}
	return New(src, classify.Default(), opts), src
}

func TestEngine_Ask(t *testing.T) {
	e, _ := newSampleEngine(Options{})

	answer, err := e.Ask(context.Background(), "What's my total spend?")
	require.NoError(t, err)
	assert.Contains(t, answer, "3301.00")

	answer, err = e.Ask(context.Background(), "Tell me a joke")
	require.NoError(t, err)
	assert.Equal(t, selector.FallbackAnswer, answer)
}

func TestEngine_SnapshotIsCached(t *testing.T) {
	e, src := newSampleEngine(Options{})
	ctx := context.Background()

	first, err := e.Snapshot(ctx)
	require.NoError(t, err)
	_, err = e.Ask(ctx, "count")
	require.NoError(t, err)
	second, err := e.Snapshot(ctx)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.EqualValues(t, 1, src.loads.Load())

	e.Invalidate()
	third, err := e.Snapshot(ctx)
	require.NoError(t, err)
	assert.NotSame(t, first, third)
	assert.EqualValues(t, 2, src.loads.Load())
}

func TestEngine_ConcurrentReadersShareOneLoad(t *testing.T) {
	e, src := newSampleEngine(Options{})

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.Context(context.Background(), "recent transactions")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, src.loads.Load())
}

func TestEngine_InvalidateWaitsForLoadInFlight(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	src := &MockSource{}
	src.RowsFunc = func(ctx context.Context) ([]ledger.RawRow, error) {
		if src.loads.Load() == 1 {
			close(started)
			<-release
			return sampleRows()[:1], nil
		}
		return sampleRows(), nil
	}
	e := New(src, classify.Default(), Options{})

	loaded := make(chan struct{})
	go func() {
		defer close(loaded)
		_, err := e.Snapshot(context.Background())
		assert.NoError(t, err)
	}()
	<-started

	invalidated := make(chan struct{})
	go func() {
		defer close(invalidated)
		e.Invalidate()
	}()

	select {
	case <-invalidated:
		t.Fatal("Invalidate returned while a load was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	<-loaded
	<-invalidated

	snap, err := e.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, snap.Dataset.Len())
	assert.EqualValues(t, 2, src.loads.Load())
}

func TestEngine_LoadFailureIsNotCached(t *testing.T) {
	fail := true
	src := &MockSource{RowsFunc: func(ctx context.Context) ([]ledger.RawRow, error) {
		if fail {
			return nil, errors.New("unreachable")
		}
		return sampleRows(), nil
	}}
	e := New(src, classify.Default(), Options{})

	_, err := e.Ask(context.Background(), "total")
	var loadErr *ledger.DataLoadError
	require.ErrorAs(t, err, &loadErr)

	fail = false
	answer, err := e.Ask(context.Background(), "total")
	require.NoError(t, err)
	assert.Contains(t, answer, "3301.00")
}

func TestEngine_Context(t *testing.T) {
	e, _ := newSampleEngine(Options{})

	p, err := e.Context(context.Background(), "highest income")
	require.NoError(t, err)
	assert.Equal(t, classify.CategoryIncome, p.MatchedCategory)
	require.Len(t, p.SampleRecords, 1)
	assert.Equal(t, "Salary credit", p.SampleRecords[0].DescriptionText())

	// Payloads must not alias the snapshot.
	p.Statistics.Categories["CHANGED"] = 1
	*p.SampleRecords[0].Description = "CHANGED"
	*p.SampleRecords[0].ParsedDate = civil.Date{Year: 1999, Month: time.January, Day: 1}
	*p.Statistics.DateRange.Start = civil.Date{Year: 1999, Month: time.January, Day: 1}

	s, err := e.Summary(context.Background())
	require.NoError(t, err)
	assert.NotContains(t, s.Categories, "CHANGED")
	assert.Equal(t, civil.Date{Year: 2025, Month: time.June, Day: 1}, *s.DateRange.Start)

	snap, err := e.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Salary credit", snap.Dataset.Records[1].DescriptionText())
	assert.Equal(t, civil.Date{Year: 2025, Month: time.June, Day: 2}, *snap.Dataset.Records[1].ParsedDate)
}

func TestEngine_RecordsAreCopies(t *testing.T) {
	e, _ := newSampleEngine(Options{})
	ctx := context.Background()

	records, err := e.Records(ctx, RecordFilter{})
	require.NoError(t, err)
	require.Len(t, records, 4)
	*records[0].Description = "CHANGED"
	*records[0].ParsedDate = civil.Date{Year: 1999, Month: time.January, Day: 1}

	again, err := e.Records(ctx, RecordFilter{})
	require.NoError(t, err)
	assert.Equal(t, "UPI payment to grocery store", again[0].DescriptionText())
	assert.Equal(t, civil.Date{Year: 2025, Month: time.June, Day: 1}, *again[0].ParsedDate)
}

func TestEngine_Analyze(t *testing.T) {
	e, _ := newSampleEngine(Options{})
	_, err := e.Analyze(context.Background(), "why?", nil)
	assert.ErrorIs(t, err, ErrNoGenerator)
	assert.False(t, e.HasAnalyzer())

	var got selector.Payload
	e, _ = newSampleEngine(Options{Analyzer: &MockAnalyzer{AnalyzeFunc: func(ctx context.Context, p selector.Payload) (string, error) {
		got = p
		return "looks healthy", nil
	}}})
	require.True(t, e.HasAnalyzer())

	answer, err := e.Analyze(context.Background(), "any trend?", []string{"total?"})
	require.NoError(t, err)
	assert.Equal(t, "looks healthy", answer)
	assert.Equal(t, "any trend?", got.Question)
	assert.Equal(t, []string{"total?"}, got.PreviousQuestions)
	assert.NotNil(t, got.Patterns)
}

func TestEngine_Records(t *testing.T) {
	e, _ := newSampleEngine(Options{})
	ctx := context.Background()

	tests := []struct {
		name   string
		filter RecordFilter
		want   []string
	}{
		{name: "all", filter: RecordFilter{}, want: []string{"UPI payment to grocery store", "Salary credit", "Netflix subscription", "ATM withdrawal"}},
		{name: "category", filter: RecordFilter{Category: "subscription"}, want: []string{"Netflix subscription"}},
		{name: "type", filter: RecordFilter{Type: classify.TypeATM}, want: []string{"ATM withdrawal"}},
		{name: "first two", filter: RecordFilter{Limit: 2}, want: []string{"UPI payment to grocery store", "Salary credit"}},
		{name: "last one", filter: RecordFilter{Limit: 1, Last: true}, want: []string{"ATM withdrawal"}},
		{name: "no match", filter: RecordFilter{Category: classify.CategoryTravel}, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := e.Records(ctx, tt.filter)
			require.NoError(t, err)
			got := make([]string, 0, len(records))
			for _, r := range records {
				got = append(got, r.DescriptionText())
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEngine_DescriptionAmountsOption(t *testing.T) {
	src := &MockSource{RowsFunc: func(ctx context.Context) ([]ledger.RawRow, error) {
		return []ledger.RawRow{{Date: "01/06/25", Description: strPtr("refund 20.00"), Amount: "5"}}, nil
	}}
	e := New(src, classify.Default(), Options{Answer: selector.Options{IncludeDescriptionAmounts: true}})

	answer, err := e.Ask(context.Background(), "total")
	require.NoError(t, err)
	assert.Contains(t, answer, "₹25.00")
}
