package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/foliomail/internal/common"
	"github.com/ternarybob/foliomail/internal/models"
)

type fakeQueue struct {
	messages []models.QueueMessage
	err      error
}

func (f *fakeQueue) Enqueue(ctx context.Context, msg models.QueueMessage) error {
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, msg)
	return nil
}

func (f *fakeQueue) Receive(ctx context.Context) (*models.QueueMessage, func() error, error) {
	return nil, nil, models.ErrNoMessage
}

func (f *fakeQueue) Extend(ctx context.Context, messageID string, duration time.Duration) error {
	return nil
}

func (f *fakeQueue) Close() error { return nil }

type fakeStore struct {
	portfolios []models.Portfolio
	err        error
}

func (f *fakeStore) List(ctx context.Context) ([]models.Portfolio, error) {
	return f.portfolios, f.err
}

func (f *fakeStore) Get(ctx context.Context, email string) (*models.Portfolio, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeStore) Put(ctx context.Context, portfolio models.Portfolio) error { return nil }
func (f *fakeStore) Delete(ctx context.Context, email string) error            { return nil }

func testEmails() []models.EmailMessage {
	return []models.EmailMessage{
		{Subject: "Markets Close", From: "Bloomberg", Body: "NVDA surged 5.2%."},
		{Subject: "Morning Brief", From: "WSJ", Body: "TSLA reports Wednesday."},
	}
}

func testPortfolios() []models.Portfolio {
	return []models.Portfolio{
		{
			Email: "alice@example.com",
			Accounts: []models.Account{
				{Name: "Brokerage", Tickers: []string{"NVDA", "AAPL"}},
			},
		},
		{
			Email: "bob@example.com",
			Accounts: []models.Account{
				{Name: "Retirement", Tickers: []string{"TSLA"}},
			},
		},
	}
}

func TestDispatchOneTaskPerPortfolio(t *testing.T) {
	queue := &fakeQueue{}
	store := &fakeStore{portfolios: testPortfolios()}
	dispatcher := NewDispatcher(queue, store, common.GetLogger())

	before := time.Now().UnixMilli()
	count, err := dispatcher.Dispatch(context.Background(), testEmails())
	after := time.Now().UnixMilli()

	require.NoError(t, err)
	assert.Equal(t, 2, count)
	require.Len(t, queue.messages, 2)

	for i, msg := range queue.messages {
		assert.Equal(t, models.TaskTypeNewsletter, msg.Type)

		payload, err := models.TaskPayloadFromJSON(msg.Payload)
		require.NoError(t, err)
		assert.Equal(t, testPortfolios()[i].Email, payload.Email)
		assert.GreaterOrEqual(t, payload.Timestamp, before)
		assert.LessOrEqual(t, payload.Timestamp, after)

		// Every task carries the full tagged concatenation of all bodies
		assert.Contains(t, payload.Stories, "Author: Bloomberg")
		assert.Contains(t, payload.Stories, "Story: NVDA surged 5.2%.")
		assert.Contains(t, payload.Stories, "Author: WSJ")
	}
}

func TestDispatchEmptyBatch(t *testing.T) {
	queue := &fakeQueue{}
	store := &fakeStore{portfolios: testPortfolios()}
	dispatcher := NewDispatcher(queue, store, common.GetLogger())

	count, err := dispatcher.Dispatch(context.Background(), nil)
	assert.True(t, errors.Is(err, ErrEmptyBatch))
	assert.Zero(t, count)
	assert.Empty(t, queue.messages, "no tasks may be created for an empty batch")
}

func TestDispatchNoPortfolios(t *testing.T) {
	queue := &fakeQueue{}
	store := &fakeStore{}
	dispatcher := NewDispatcher(queue, store, common.GetLogger())

	count, err := dispatcher.Dispatch(context.Background(), testEmails())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestDispatchStoreError(t *testing.T) {
	queue := &fakeQueue{}
	store := &fakeStore{err: errors.New("db unavailable")}
	dispatcher := NewDispatcher(queue, store, common.GetLogger())

	_, err := dispatcher.Dispatch(context.Background(), testEmails())
	assert.Error(t, err)
}

func TestDispatchQueueError(t *testing.T) {
	queue := &fakeQueue{err: errors.New("queue unavailable")}
	store := &fakeStore{portfolios: testPortfolios()}
	dispatcher := NewDispatcher(queue, store, common.GetLogger())

	count, err := dispatcher.Dispatch(context.Background(), testEmails())
	assert.Error(t, err)
	assert.Zero(t, count)
}
