package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"search-service/internal/contextkeys"
	"search-service/internal/core/domain"
	"search-service/pkg/rabbitmq/rabbitmq_consumer"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeApply struct {
	mu      sync.Mutex
	events  []domain.ChangeEvent
	traceID string
	err     error
}

func (f *fakeApply) Execute(ctx context.Context, event domain.ChangeEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	f.traceID = contextkeys.TraceIDFromContext(ctx)
	return f.err
}

type countingStats struct{ malformed int }

func (c *countingStats) RecordMalformed() { c.malformed++ }

func newTestHandler(uc *fakeApply) (*ChangeEventConsumerAdapter, *countingStats) {
	stats := &countingStats{}
	a := newChangeEventHandler(uc, stats, nil, contextkeys.NoopLogger())
	a.now = func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }
	return a, stats
}

func delivery(body string, headers amqp.Table) amqp.Delivery {
	return amqp.Delivery{Body: []byte(body), Headers: headers, RoutingKey: "listing.updated"}
}

const listingUpdate = `{"entityKind":"LISTING","action":"UPDATE","emittedAt":"2024-05-01T10:00:00Z",
	"payload":{"id":"l-1","title":"Loft","price":"2500"}}`

func TestMessageHandler_AppliesEventWithTraceID(t *testing.T) {
	uc := &fakeApply{}
	a, stats := newTestHandler(uc)
	traceID := "6f1c1b0e-6a55-4b44-9d7e-3b1f0c1b2a11"

	err := a.messageHandler(context.Background(), delivery(listingUpdate, amqp.Table{headerTraceID: traceID}))
	require.NoError(t, err)

	require.Len(t, uc.events, 1)
	event := uc.events[0]
	assert.Equal(t, domain.EntityListing, event.EntityKind)
	assert.Equal(t, domain.ActionUpdate, event.Action)
	assert.Equal(t, "l-1", event.EntityID)
	require.NotNil(t, event.Listing)
	assert.Equal(t, 2500.0, *event.Listing.Price)
	assert.Equal(t, traceID, uc.traceID)
	assert.Zero(t, stats.malformed)
}

func TestMessageHandler_GeneratesTraceIDWhenMissing(t *testing.T) {
	uc := &fakeApply{}
	a, _ := newTestHandler(uc)

	require.NoError(t, a.messageHandler(context.Background(), delivery(listingUpdate, nil)))
	assert.Len(t, uc.traceID, 36)
}

func TestMessageHandler_MalformedIsPermanent(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		headers amqp.Table
	}{
		{name: "not json", body: `{oops`},
		{name: "schema violation", body: `{"entityKind":"LISTING","action":"CREATE"}`},
		{name: "missing id", body: `{"entityKind":"LISTING","action":"CREATE","payload":{"title":"x"}}`},
		{name: "unknown schema version", body: listingUpdate, headers: amqp.Table{headerEventVersion: "9.0.0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uc := &fakeApply{}
			a, stats := newTestHandler(uc)

			err := a.messageHandler(context.Background(), delivery(tt.body, tt.headers))
			require.Error(t, err)
			assert.True(t, rabbitmq_consumer.IsPermanent(err))
			assert.ErrorIs(t, err, domain.ErrMalformedEvent)
			assert.Empty(t, uc.events)
			assert.Equal(t, 1, stats.malformed)
		})
	}
}

func TestMessageHandler_StoreFailureIsRetried(t *testing.T) {
	uc := &fakeApply{err: errors.New("connection refused")}
	a, stats := newTestHandler(uc)

	err := a.messageHandler(context.Background(), delivery(listingUpdate, nil))
	require.Error(t, err)
	assert.False(t, rabbitmq_consumer.IsPermanent(err))
	assert.Zero(t, stats.malformed)
}

func TestMessageHandler_UnknownKindIsPassedThrough(t *testing.T) {
	uc := &fakeApply{}
	a, _ := newTestHandler(uc)

	err := a.messageHandler(context.Background(), delivery(`{"entityKind":"REVIEW","action":"CREATE","payload":{"id":"r-1"}}`, nil))
	require.NoError(t, err)
	require.Len(t, uc.events, 1)
	assert.Nil(t, uc.events[0].Listing)
}

type fakePublisher struct {
	key string
	msg amqp.Publishing
	err error
}

func (f *fakePublisher) Publish(_ context.Context, key string, msg amqp.Publishing) error {
	f.key = key
	f.msg = msg
	return f.err
}

func TestReindexReporter_PublishesReport(t *testing.T) {
	pub := &fakePublisher{}
	reporter, err := NewReindexReporterAdapter(pub, "search.reindex.result")
	require.NoError(t, err)

	finished := time.Date(2024, 6, 1, 12, 5, 0, 0, time.UTC)
	ctx := contextkeys.ContextWithTraceID(context.Background(), "trace-1")
	err = reporter.ReportReindex(ctx, domain.ReindexReport{
		RunID: "run-1", Status: domain.ReindexCompleted,
		StartedAt: finished.Add(-5 * time.Minute), FinishedAt: &finished,
		ListingsIndexed: 10, UsersIndexed: 3, ListingsPurged: 2,
	})
	require.NoError(t, err)

	assert.Equal(t, "search.reindex.result", pub.key)
	assert.Equal(t, "trace-1", pub.msg.Headers[headerTraceID])
	assert.Equal(t, amqp.Persistent, pub.msg.DeliveryMode)

	var dto ReindexReportDTO
	require.NoError(t, json.Unmarshal(pub.msg.Body, &dto))
	assert.Equal(t, "COMPLETED", dto.Status)
	assert.Equal(t, 10, dto.ListingsIndexed)
	assert.EqualValues(t, 2, dto.ListingsPurged)
}

func TestReindexReporter_Validation(t *testing.T) {
	_, err := NewReindexReporterAdapter(nil, "key")
	assert.Error(t, err)
	_, err = NewReindexReporterAdapter(&fakePublisher{}, "")
	assert.Error(t, err)

	reporter, err := NewReindexReporterAdapter(&fakePublisher{err: errors.New("channel closed")}, "key")
	require.NoError(t, err)
	assert.Error(t, reporter.ReportReindex(context.Background(), domain.ReindexReport{RunID: "r"}))
}

func TestPkgLoggerBridge_SkipsBrokenPairs(t *testing.T) {
	bridge := &PkgLoggerBridge{internalLogger: contextkeys.NoopLogger()}
	fields := bridge.toFields("queue", "q1", 42, "x", "dangling")
	assert.Equal(t, 1, len(fields))
	assert.Equal(t, "q1", fields["queue"])
}
