package enrich

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/foliomail/internal/common"
	"github.com/ternarybob/foliomail/internal/interfaces"
	"github.com/ternarybob/foliomail/internal/models"
)

// Client wraps a single enrichment request against the chat-completion
// service. It owns prompt construction, response parsing and per-call
// retry with linearly increasing backoff. Exhausted retries resolve to a
// fallback empty result, never an error to the caller.
type Client struct {
	llm        interfaces.LLMService
	maxRetries int
	backoff    time.Duration
	logger     arbor.ILogger
}

// NewClient creates an enrichment client over the given LLM service.
func NewClient(llm interfaces.LLMService, cfg *common.EnrichConfig, logger arbor.ILogger) *Client {
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 5
	}

	return &Client{
		llm:        llm,
		maxRetries: maxRetries,
		backoff:    cfg.RetryBackoffDuration(),
		logger:     logger,
	}
}

// EnrichTicker asks the service for the stories in the given text that relate
// to one ticker symbol. Returns the parsed stories and a tri-state outcome;
// on exhausted retries the stories are an empty slice, never an error.
func (c *Client) EnrichTicker(ctx context.Context, ticker, stories string) ([]models.TickerStory, Outcome) {
	prompt := buildPerTickerPrompt(ticker, stories)

	var parsed []models.TickerStory
	outcome := c.callWithRetry(ctx, prompt, '[', ']', "ticker", ticker, func(cleaned []byte) error {
		return json.Unmarshal(cleaned, &parsed)
	})
	if outcome.Status == StatusFailed {
		return []models.TickerStory{}, outcome
	}

	if len(parsed) == 0 {
		return []models.TickerStory{}, NotFound()
	}

	return parsed, Found()
}

// EnrichCompiled asks the service for a single compiled newsletter covering
// the whole deduplicated ticker set. On exhausted retries the result is the
// empty newsletter, never an error.
func (c *Client) EnrichCompiled(ctx context.Context, tickers []string, stories string) (*models.CompiledNewsletter, Outcome) {
	prompt := buildCompiledPrompt(tickers, stories)

	var parsed models.CompiledNewsletter
	outcome := c.callWithRetry(ctx, prompt, '{', '}', "tickers", strings.Join(tickers, ","), func(cleaned []byte) error {
		return json.Unmarshal(cleaned, &parsed)
	})
	if outcome.Status == StatusFailed {
		return &models.CompiledNewsletter{}, outcome
	}

	if parsed.IsEmpty() {
		return &parsed, NotFound()
	}

	return &parsed, Found()
}

// callWithRetry issues the chat completion up to maxRetries times. A response
// counts as good once its fences are stripped, its outer JSON delimiters
// match and it parses; any failure (transport error, delimiter mismatch,
// parse error) schedules another attempt after attempt*backoff.
func (c *Client) callWithRetry(ctx context.Context, prompt string, open, close byte, logKey, logValue string, parse func([]byte) error) Outcome {
	var lastReason string

	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			// Linear backoff: attempt index scales the base unit
			if err := sleepCtx(ctx, time.Duration(attempt)*c.backoff); err != nil {
				return Failed("canceled: " + err.Error())
			}
		}

		response, err := c.llm.Chat(ctx, []interfaces.Message{
			{Role: "user", Content: prompt},
		})
		if err != nil {
			lastReason = err.Error()
			c.logger.Warn().
				Err(err).
				Str(logKey, logValue).
				Int("attempt", attempt+1).
				Int("max_retries", c.maxRetries).
				Msg("Enrichment call failed")
			continue
		}

		cleaned := stripFences(response)
		if !hasOuterDelimiters(cleaned, open, close) {
			lastReason = "response is not valid JSON"
			c.logger.Warn().
				Str(logKey, logValue).
				Int("attempt", attempt+1).
				Int("response_length", len(response)).
				Msg("Enrichment response missing JSON delimiters")
			continue
		}

		if err := parse([]byte(cleaned)); err != nil {
			lastReason = "parse: " + err.Error()
			c.logger.Warn().
				Err(err).
				Str(logKey, logValue).
				Int("attempt", attempt+1).
				Msg("Enrichment response failed to parse")
			continue
		}

		return Found()
	}

	c.logger.Error().
		Str(logKey, logValue).
		Int("max_retries", c.maxRetries).
		Str("reason", lastReason).
		Msg("Enrichment retries exhausted, using fallback result")

	return Failed(lastReason)
}

// stripFences removes markdown code-fence markers from a model response.
func stripFences(text string) string {
	cleaned := strings.ReplaceAll(text, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	return strings.TrimSpace(cleaned)
}

// hasOuterDelimiters reports whether the text is syntactically a JSON value
// of the expected shape, judged by its outer delimiters only.
func hasOuterDelimiters(text string, open, close byte) bool {
	if len(text) < 2 {
		return false
	}
	return text[0] == open && text[len(text)-1] == close
}

// sleepCtx sleeps for the duration unless the context is canceled first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
