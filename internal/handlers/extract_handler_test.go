package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/foliomail/internal/common"
	"github.com/ternarybob/foliomail/internal/dispatch"
	"github.com/ternarybob/foliomail/internal/ingest"
	"github.com/ternarybob/foliomail/internal/models"
)

type fakeQueue struct {
	enqueued []models.QueueMessage
}

func (q *fakeQueue) Enqueue(ctx context.Context, msg models.QueueMessage) error {
	q.enqueued = append(q.enqueued, msg)
	return nil
}

func (q *fakeQueue) Receive(ctx context.Context) (*models.QueueMessage, func() error, error) {
	return nil, nil, models.ErrNoMessage
}

func (q *fakeQueue) Extend(ctx context.Context, messageID string, duration time.Duration) error {
	return nil
}

func (q *fakeQueue) Close() error { return nil }

type fakeStore struct {
	portfolios []models.Portfolio
}

func (s *fakeStore) List(ctx context.Context) ([]models.Portfolio, error) {
	return s.portfolios, nil
}

func (s *fakeStore) Get(ctx context.Context, email string) (*models.Portfolio, error) {
	for i := range s.portfolios {
		if s.portfolios[i].Email == email {
			return &s.portfolios[i], nil
		}
	}
	return nil, errors.New("portfolio not found")
}

func (s *fakeStore) Put(ctx context.Context, portfolio models.Portfolio) error { return nil }

func (s *fakeStore) Delete(ctx context.Context, email string) error { return nil }

func newExtractHandler(queue *fakeQueue, store *fakeStore) *ExtractHandler {
	logger := common.GetLogger()
	dispatcher := dispatch.NewDispatcher(queue, store, logger)
	sanitizer := ingest.NewSanitizer(logger)
	return NewExtractHandler(sanitizer, dispatcher, logger)
}

func TestExtractHandler_QueuesOneTaskPerPortfolio(t *testing.T) {
	queue := &fakeQueue{}
	store := &fakeStore{portfolios: []models.Portfolio{
		{Email: "alice@example.com", Accounts: []models.Account{{Name: "Cash", Tickers: []string{"NVDA"}}}},
		{Email: "bob@example.com", Accounts: []models.Account{{Name: "Super", Tickers: []string{"AAPL"}}}},
	}}
	handler := newExtractHandler(queue, store)

	body := `{"emails": [{"from": "Bloomberg", "body": "NVDA rallied on data center demand."}]}`
	req := httptest.NewRequest("POST", "/extract", strings.NewReader(body))
	rec := httptest.NewRecorder()

	handler.ExtractHandler(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, rec.Body.String(), `"processed":2`)
	assert.Len(t, queue.enqueued, 2)
}

func TestExtractHandler_SanitizesHTMLBodies(t *testing.T) {
	queue := &fakeQueue{}
	store := &fakeStore{portfolios: []models.Portfolio{
		{Email: "alice@example.com", Accounts: []models.Account{{Name: "Cash", Tickers: []string{"NVDA"}}}},
	}}
	handler := newExtractHandler(queue, store)

	body := `{"emails": [{"from": "Bloomberg", "body": "<html><body><script>track()</script><p>NVDA rallied.</p></body></html>"}]}`
	req := httptest.NewRequest("POST", "/extract", strings.NewReader(body))
	rec := httptest.NewRecorder()

	handler.ExtractHandler(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, queue.enqueued, 1)

	payload, err := models.TaskPayloadFromJSON(queue.enqueued[0].Payload)
	require.NoError(t, err)
	assert.Contains(t, payload.Stories, "NVDA rallied.")
	assert.NotContains(t, payload.Stories, "track()")
}

func TestExtractHandler_EmptyBatchRejected(t *testing.T) {
	handler := newExtractHandler(&fakeQueue{}, &fakeStore{})

	for name, body := range map[string]string{
		"missing emails": `{}`,
		"empty emails":   `{"emails": []}`,
	} {
		req := httptest.NewRequest("POST", "/extract", strings.NewReader(body))
		rec := httptest.NewRecorder()

		handler.ExtractHandler(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code, name)
	}
}

func TestExtractHandler_InvalidJSON(t *testing.T) {
	handler := newExtractHandler(&fakeQueue{}, &fakeStore{})

	req := httptest.NewRequest("POST", "/extract", strings.NewReader("not json"))
	rec := httptest.NewRecorder()

	handler.ExtractHandler(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExtractHandler_MethodNotAllowed(t *testing.T) {
	handler := newExtractHandler(&fakeQueue{}, &fakeStore{})

	req := httptest.NewRequest("GET", "/extract", nil)
	rec := httptest.NewRecorder()

	handler.ExtractHandler(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestExtractHandler_NoPortfoliosStillAccepted(t *testing.T) {
	queue := &fakeQueue{}
	handler := newExtractHandler(queue, &fakeStore{})

	body := `{"emails": [{"from": "Bloomberg", "body": "NVDA rallied."}]}`
	req := httptest.NewRequest("POST", "/extract", strings.NewReader(body))
	rec := httptest.NewRecorder()

	handler.ExtractHandler(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, rec.Body.String(), `"processed":0`)
	assert.Empty(t, queue.enqueued)
}
