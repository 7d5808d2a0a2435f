package worker

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/foliomail/internal/common"
	"github.com/ternarybob/foliomail/internal/enrich"
	"github.com/ternarybob/foliomail/internal/interfaces"
	"github.com/ternarybob/foliomail/internal/models"
)

// scriptedLLM answers prompts by substring match on the ticker, counting
// calls.
type scriptedLLM struct {
	mu        sync.Mutex
	responses map[string]string
	calls     int
}

func (f *scriptedLLM) Chat(ctx context.Context, messages []interfaces.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++

	prompt := messages[len(messages)-1].Content
	for key, response := range f.responses {
		if strings.Contains(prompt, key) {
			return response, nil
		}
	}
	return "[]", nil
}

func (f *scriptedLLM) HealthCheck(ctx context.Context) error { return nil }
func (f *scriptedLLM) Close() error                          { return nil }

func (f *scriptedLLM) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeRenderer struct {
	renderCalls int
	failWith    error
	lastTitle   string
}

func (f *fakeRenderer) RenderNewsletter(newsletter *models.CompiledNewsletter) ([]byte, error) {
	f.renderCalls++
	f.lastTitle = newsletter.Title
	if f.failWith != nil {
		return nil, f.failWith
	}
	return []byte("%PDF " + newsletter.Body), nil
}

func (f *fakeRenderer) RenderSections(title string, sections []models.TickerSection) ([]byte, error) {
	f.renderCalls++
	f.lastTitle = title
	if f.failWith != nil {
		return nil, f.failWith
	}
	var sb strings.Builder
	sb.WriteString("%PDF ")
	for _, section := range sections {
		sb.WriteString(section.Ticker + ";")
	}
	return []byte(sb.String()), nil
}

type sentMail struct {
	to          string
	subject     string
	attachments []interfaces.Attachment
}

type fakeMailer struct {
	sent     []sentMail
	failWith error
}

func (f *fakeMailer) SendEmail(ctx context.Context, to, subject, body string) error {
	if f.failWith != nil {
		return f.failWith
	}
	f.sent = append(f.sent, sentMail{to: to, subject: subject})
	return nil
}

func (f *fakeMailer) SendEmailWithAttachments(ctx context.Context, to, subject, body string, attachments []interfaces.Attachment) error {
	if f.failWith != nil {
		return f.failWith
	}
	f.sent = append(f.sent, sentMail{to: to, subject: subject, attachments: attachments})
	return nil
}

func testConfig(mode string) *common.EnrichConfig {
	return &common.EnrichConfig{
		Mode:            mode,
		BatchSize:       5,
		BatchDelay:      "1ms",
		MaxRetries:      2,
		RetryBackoff:    "1ms",
		MaxTaskAge:      "10s",
		AttachPDF:       true,
		NewsletterTitle: "Folio Diligence",
	}
}

func newTestWorker(t *testing.T, llm interfaces.LLMService, mode string, renderer *fakeRenderer, mailer *fakeMailer) *NewsletterWorker {
	t.Helper()
	cfg := testConfig(mode)
	logger := common.GetLogger()
	client := enrich.NewClient(llm, cfg, logger)
	scheduler := enrich.NewScheduler(client, cfg, logger)
	return NewNewsletterWorker(client, scheduler, renderer, mailer, cfg, logger)
}

func queueMessage(t *testing.T, payload models.TaskPayload) *models.QueueMessage {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return &models.QueueMessage{
		ID:      "msg-1",
		Type:    models.TaskTypeNewsletter,
		Payload: data,
	}
}

func freshPayload() models.TaskPayload {
	return models.TaskPayload{
		Email: "alice@example.com",
		Tickers: map[string][]string{
			"Brokerage": {"NVDA", "AAPL"},
		},
		Stories:   "Author: Bloomberg\nStory: NVDA surged 5.2% on data center demand.",
		Timestamp: time.Now().UnixMilli(),
	}
}

func TestWorkerPerTickerScenario(t *testing.T) {
	// One story for NVDA, none for AAPL: the rendered output contains
	// exactly the NVDA section
	llm := &scriptedLLM{responses: map[string]string{
		"the stock NVDA": `[{"title": "Data center demand", "body": "According to Bloomberg, NVDA surged 5.2%.", "explanation": "e", "confidence": 95}]`,
		"the stock AAPL": `[]`,
	}}
	renderer := &fakeRenderer{}
	mailer := &fakeMailer{}
	worker := newTestWorker(t, llm, enrich.ModePerTicker, renderer, mailer)

	err := worker.Handle(context.Background(), queueMessage(t, freshPayload()))
	require.NoError(t, err)

	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "alice@example.com", mailer.sent[0].to)
	assert.Equal(t, "Folio Diligence", mailer.sent[0].subject)
	require.Len(t, mailer.sent[0].attachments, 1)
	assert.Equal(t, "application/pdf", mailer.sent[0].attachments[0].ContentType)
	assert.Equal(t, "%PDF NVDA;", string(mailer.sent[0].attachments[0].Content))
}

func TestWorkerCompiledMode(t *testing.T) {
	llm := &scriptedLLM{responses: map[string]string{
		"newsletter": `{"title": "Tech Rally Roundup", "body": "NVDA\nAccording to Bloomberg, NVDA surged 5.2%."}`,
	}}
	renderer := &fakeRenderer{}
	mailer := &fakeMailer{}
	worker := newTestWorker(t, llm, enrich.ModeCompiled, renderer, mailer)

	err := worker.Handle(context.Background(), queueMessage(t, freshPayload()))
	require.NoError(t, err)

	assert.Equal(t, 1, llm.callCount(), "compiled mode makes a single call for the whole ticker set")
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "Tech Rally Roundup", mailer.sent[0].subject)
	assert.Equal(t, "Tech Rally Roundup", renderer.lastTitle)
}

func TestWorkerSkipsStaleTask(t *testing.T) {
	llm := &scriptedLLM{responses: map[string]string{}}
	renderer := &fakeRenderer{}
	mailer := &fakeMailer{}
	worker := newTestWorker(t, llm, enrich.ModePerTicker, renderer, mailer)

	payload := freshPayload()
	payload.Timestamp = time.Now().Add(-15 * time.Second).UnixMilli()

	err := worker.Handle(context.Background(), queueMessage(t, payload))
	require.NoError(t, err, "stale task must ack with success")
	assert.Zero(t, llm.callCount(), "stale task must trigger zero enrichment calls")
	assert.Zero(t, renderer.renderCalls)
	assert.Empty(t, mailer.sent)
}

func TestWorkerDropsIncompletePayload(t *testing.T) {
	llm := &scriptedLLM{responses: map[string]string{}}
	renderer := &fakeRenderer{}
	mailer := &fakeMailer{}
	worker := newTestWorker(t, llm, enrich.ModePerTicker, renderer, mailer)

	payload := freshPayload()
	payload.Stories = ""

	err := worker.Handle(context.Background(), queueMessage(t, payload))
	require.NoError(t, err, "incomplete payload must be dropped with a success ack")
	assert.Zero(t, llm.callCount())
	assert.Zero(t, renderer.renderCalls)
	assert.Empty(t, mailer.sent)
}

func TestWorkerDropsMalformedPayload(t *testing.T) {
	llm := &scriptedLLM{responses: map[string]string{}}
	renderer := &fakeRenderer{}
	mailer := &fakeMailer{}
	worker := newTestWorker(t, llm, enrich.ModePerTicker, renderer, mailer)

	msg := &models.QueueMessage{
		ID:      "msg-1",
		Type:    models.TaskTypeNewsletter,
		Payload: json.RawMessage(`{not json`),
	}

	err := worker.Handle(context.Background(), msg)
	require.NoError(t, err)
	assert.Zero(t, llm.callCount())
}

func TestWorkerAbsorbsRenderFailure(t *testing.T) {
	llm := &scriptedLLM{responses: map[string]string{
		"the stock NVDA": `[{"title": "t", "body": "b", "explanation": "e", "confidence": 50}]`,
	}}
	renderer := &fakeRenderer{failWith: errors.New("pdf engine broke")}
	mailer := &fakeMailer{}
	worker := newTestWorker(t, llm, enrich.ModePerTicker, renderer, mailer)

	err := worker.Handle(context.Background(), queueMessage(t, freshPayload()))
	require.NoError(t, err, "render failure is absorbed, not retried through the queue")
	assert.Empty(t, mailer.sent)
}

func TestWorkerAbsorbsDeliveryFailure(t *testing.T) {
	llm := &scriptedLLM{responses: map[string]string{
		"the stock NVDA": `[{"title": "t", "body": "b", "explanation": "e", "confidence": 50}]`,
	}}
	renderer := &fakeRenderer{}
	mailer := &fakeMailer{failWith: errors.New("smtp down")}
	worker := newTestWorker(t, llm, enrich.ModePerTicker, renderer, mailer)

	err := worker.Handle(context.Background(), queueMessage(t, freshPayload()))
	require.NoError(t, err, "delivery failure is absorbed, not retried through the queue")
}

func TestWorkerIdempotentContentDoubleDelivery(t *testing.T) {
	// Same fresh payload processed twice produces the same content and two
	// deliveries
	llm := &scriptedLLM{responses: map[string]string{
		"the stock NVDA": `[{"title": "t", "body": "b", "explanation": "e", "confidence": 50}]`,
		"the stock AAPL": `[]`,
	}}
	renderer := &fakeRenderer{}
	mailer := &fakeMailer{}
	worker := newTestWorker(t, llm, enrich.ModePerTicker, renderer, mailer)

	msg := queueMessage(t, freshPayload())
	require.NoError(t, worker.Handle(context.Background(), msg))
	require.NoError(t, worker.Handle(context.Background(), msg))

	require.Len(t, mailer.sent, 2)
	assert.Equal(t, mailer.sent[0].attachments[0].Content, mailer.sent[1].attachments[0].Content)
}

func TestWorkerEnrichmentFailureStillDelivers(t *testing.T) {
	// Persistent garbage from the service resolves to the fallback; the
	// newsletter is still rendered and delivered with no sections
	llm := &scriptedLLM{responses: map[string]string{
		"the stock NVDA": "garbage",
		"the stock AAPL": "garbage",
	}}
	renderer := &fakeRenderer{}
	mailer := &fakeMailer{}
	worker := newTestWorker(t, llm, enrich.ModePerTicker, renderer, mailer)

	err := worker.Handle(context.Background(), queueMessage(t, freshPayload()))
	require.NoError(t, err)
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "%PDF ", string(mailer.sent[0].attachments[0].Content))
}
