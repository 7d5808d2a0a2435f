package enrich

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/foliomail/internal/common"
	"github.com/ternarybob/foliomail/internal/interfaces"
)

// tickerLLM answers per-ticker prompts with a canned response per symbol,
// recording the order calls were issued in.
type tickerLLM struct {
	mu        sync.Mutex
	responses map[string]string
	callOrder []string
}

func (f *tickerLLM) Chat(ctx context.Context, messages []interfaces.Message) (string, error) {
	prompt := messages[len(messages)-1].Content

	f.mu.Lock()
	defer f.mu.Unlock()

	for ticker, response := range f.responses {
		if strings.Contains(prompt, "related to the stock "+ticker) {
			f.callOrder = append(f.callOrder, ticker)
			return response, nil
		}
	}
	f.callOrder = append(f.callOrder, "?")
	return "[]", nil
}

func (f *tickerLLM) HealthCheck(ctx context.Context) error { return nil }
func (f *tickerLLM) Close() error                          { return nil }

func TestSchedulerPreservesInputOrder(t *testing.T) {
	llm := &tickerLLM{responses: map[string]string{
		"NVDA": `[{"title": "n", "body": "b", "explanation": "e", "confidence": 90}]`,
		"AAPL": `[]`,
		"TSLA": `[{"title": "t", "body": "b", "explanation": "e", "confidence": 80}]`,
	}}
	client := NewClient(llm, testEnrichConfig(), common.GetLogger())
	scheduler := NewScheduler(client, testEnrichConfig(), common.GetLogger())

	results := scheduler.Run(context.Background(), []string{"NVDA", "AAPL", "TSLA"}, "stories")

	require.Len(t, results, 3)
	assert.Equal(t, "NVDA", results[0].Ticker)
	assert.Equal(t, "AAPL", results[1].Ticker)
	assert.Equal(t, "TSLA", results[2].Ticker)

	assert.Equal(t, StatusFound, results[0].Outcome.Status)
	assert.Equal(t, StatusNotFound, results[1].Outcome.Status)
	assert.Equal(t, StatusFound, results[2].Outcome.Status)
}

func TestSchedulerStrictBatchOrdering(t *testing.T) {
	// Batch size 2: TSLA may only be called after both NVDA and AAPL resolve
	llm := &tickerLLM{responses: map[string]string{
		"NVDA": `[]`,
		"AAPL": `[]`,
		"TSLA": `[]`,
	}}
	client := NewClient(llm, testEnrichConfig(), common.GetLogger())
	scheduler := NewScheduler(client, testEnrichConfig(), common.GetLogger())

	scheduler.Run(context.Background(), []string{"NVDA", "AAPL", "TSLA"}, "stories")

	require.Len(t, llm.callOrder, 3)
	assert.Equal(t, "TSLA", llm.callOrder[2])
}

func TestSchedulerSurvivesSingleCallFailure(t *testing.T) {
	// AAPL returns garbage on every attempt; the schedule still resolves
	// every ticker
	llm := &tickerLLM{responses: map[string]string{
		"NVDA": `[{"title": "n", "body": "b", "explanation": "e", "confidence": 90}]`,
		"AAPL": `not json at all`,
	}}
	client := NewClient(llm, testEnrichConfig(), common.GetLogger())
	scheduler := NewScheduler(client, testEnrichConfig(), common.GetLogger())

	results := scheduler.Run(context.Background(), []string{"NVDA", "AAPL"}, "stories")

	require.Len(t, results, 2)
	assert.Equal(t, StatusFound, results[0].Outcome.Status)
	assert.Equal(t, StatusFailed, results[1].Outcome.Status)
	assert.Empty(t, results[1].Stories)
}

func TestSectionsFiltersEmptyTickers(t *testing.T) {
	// Scheduler output for tickers [NVDA, AAPL] where only NVDA has a story:
	// the aggregated sections contain exactly one entry and AAPL is absent
	llm := &tickerLLM{responses: map[string]string{
		"NVDA": `[{"title": "Data center demand", "body": "According to Bloomberg, NVDA surged.", "explanation": "e", "confidence": 95}]`,
		"AAPL": `[]`,
	}}
	client := NewClient(llm, testEnrichConfig(), common.GetLogger())
	scheduler := NewScheduler(client, testEnrichConfig(), common.GetLogger())

	results := scheduler.Run(context.Background(), []string{"NVDA", "AAPL"}, "stories")
	sections := Sections(results)

	require.Len(t, sections, 1)
	assert.Equal(t, "NVDA", sections[0].Ticker)
	require.Len(t, sections[0].Stories, 1)
	assert.Equal(t, "Data center demand", sections[0].Stories[0].Title)
}

func TestSchedulerEmptyTickerList(t *testing.T) {
	llm := &tickerLLM{responses: map[string]string{}}
	client := NewClient(llm, testEnrichConfig(), common.GetLogger())
	scheduler := NewScheduler(client, testEnrichConfig(), common.GetLogger())

	results := scheduler.Run(context.Background(), nil, "stories")
	assert.Empty(t, results)
	assert.Empty(t, Sections(results))
}
