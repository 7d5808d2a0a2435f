package enrich

import (
	"context"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/foliomail/internal/common"
	"github.com/ternarybob/foliomail/internal/models"
	"golang.org/x/time/rate"
)

// TickerResult pairs one ticker's enrichment content with its outcome.
type TickerResult struct {
	Ticker  string
	Stories []models.TickerStory
	Outcome Outcome
}

// Scheduler partitions per-ticker enrichment calls into fixed-size batches.
// Calls within one batch run concurrently; batch k fully resolves before
// batch k+1 starts, and batch starts are paced by a fixed-rate limiter to
// stay under the enrichment service's rate limit. A single call's terminal
// failure never fails the schedule: each call independently resolves to a
// parsed result or the fallback.
type Scheduler struct {
	client    *Client
	batchSize int
	limiter   *rate.Limiter
	logger    arbor.ILogger
}

// NewScheduler creates a batch scheduler over the enrichment client.
func NewScheduler(client *Client, cfg *common.EnrichConfig, logger arbor.ILogger) *Scheduler {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 5
	}

	delay := cfg.BatchDelayDuration()
	if delay <= 0 {
		delay = 3 * time.Second
	}

	return &Scheduler{
		client:    client,
		batchSize: batchSize,
		limiter:   rate.NewLimiter(rate.Every(delay), 1),
		logger:    logger,
	}
}

// Run enriches every ticker against the stories text and returns one result
// per ticker, in input order.
func (s *Scheduler) Run(ctx context.Context, tickers []string, stories string) []TickerResult {
	results := make([]TickerResult, len(tickers))

	for start := 0; start < len(tickers); start += s.batchSize {
		end := start + s.batchSize
		if end > len(tickers) {
			end = len(tickers)
		}
		batch := tickers[start:end]

		// First batch consumes the limiter's initial token immediately;
		// later batches wait out the inter-batch delay
		if err := s.limiter.Wait(ctx); err != nil {
			for i := start; i < len(tickers); i++ {
				results[i] = TickerResult{
					Ticker:  tickers[i],
					Stories: []models.TickerStory{},
					Outcome: Failed("canceled: " + err.Error()),
				}
			}
			return results
		}

		s.logger.Debug().
			Int("batch_start", start).
			Int("batch_size", len(batch)).
			Int("total", len(tickers)).
			Msg("Issuing enrichment batch")

		// Order-preserving gather: each call writes its own slot
		var wg sync.WaitGroup
		for i, ticker := range batch {
			wg.Add(1)
			go func(idx int, ticker string) {
				defer wg.Done()
				found, outcome := s.client.EnrichTicker(ctx, ticker, stories)
				results[start+idx] = TickerResult{
					Ticker:  ticker,
					Stories: found,
					Outcome: outcome,
				}
			}(i, ticker)
		}
		wg.Wait()
	}

	return results
}

// Sections filters scheduler results down to the tickers that produced
// stories, preserving input order. This is the per-ticker aggregation step:
// tickers with empty story lists are excluded from the rendered newsletter.
func Sections(results []TickerResult) []models.TickerSection {
	sections := make([]models.TickerSection, 0, len(results))
	for _, result := range results {
		if len(result.Stories) == 0 {
			continue
		}
		sections = append(sections, models.TickerSection{
			Ticker:  result.Ticker,
			Stories: result.Stories,
		})
	}
	return sections
}
