package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"search-service/internal/contextkeys"
	"search-service/internal/core/domain"
	"search-service/internal/core/port"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ReindexReportDTO сообщение об итогах переиндексации
type ReindexReportDTO struct {
	RunID           string     `json:"run_id"`
	Status          string     `json:"status"`
	StartedAt       time.Time  `json:"started_at"`
	FinishedAt      *time.Time `json:"finished_at,omitempty"`
	ListingsIndexed int        `json:"listings_indexed"`
	UsersIndexed    int        `json:"users_indexed"`
	Failed          int        `json:"failed"`
	ListingsPurged  int64      `json:"listings_purged"`
	UsersPurged     int64      `json:"users_purged"`
	Errors          []string   `json:"errors,omitempty"`
}

// publisher то, что адаптеру нужно от rabbitmq_producer.Publisher
type publisher interface {
	Publish(ctx context.Context, routingKey string, msg amqp.Publishing) error
}

type ReindexReporterAdapter struct {
	producer   publisher
	routingKey string
}

func NewReindexReporterAdapter(producer publisher, routingKey string) (*ReindexReporterAdapter, error) {
	if producer == nil {
		return nil, fmt.Errorf("rabbitmq adapter: producer cannot be nil")
	}
	if routingKey == "" {
		return nil, fmt.Errorf("rabbitmq adapter: routingKey cannot be empty")
	}
	return &ReindexReporterAdapter{producer: producer, routingKey: routingKey}, nil
}

func (a *ReindexReporterAdapter) ReportReindex(ctx context.Context, report domain.ReindexReport) error {
	adapterLogger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"component":   "ReindexReporterAdapter",
		"routing_key": a.routingKey,
		"run_id":      report.RunID,
	})

	body, err := json.Marshal(ReindexReportDTO{
		RunID:           report.RunID,
		Status:          string(report.Status),
		StartedAt:       report.StartedAt,
		FinishedAt:      report.FinishedAt,
		ListingsIndexed: report.ListingsIndexed,
		UsersIndexed:    report.UsersIndexed,
		Failed:          report.Failed,
		ListingsPurged:  report.ListingsPurged,
		UsersPurged:     report.UsersPurged,
		Errors:          report.Errors,
	})
	if err != nil {
		return fmt.Errorf("rabbitmq adapter: failed to marshal reindex report: %w", err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Headers:      amqp.Table{headerEventType: "ReindexReport", headerEventVersion: "1.0.0"},
	}
	if traceID := contextkeys.TraceIDFromContext(ctx); traceID != "" {
		msg.Headers[headerTraceID] = traceID
	}

	publishCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := a.producer.Publish(publishCtx, a.routingKey, msg); err != nil {
		adapterLogger.Error("Failed to publish reindex report", err, nil)
		return fmt.Errorf("rabbitmq adapter: failed to publish reindex report %s: %w", report.RunID, err)
	}
	adapterLogger.Info("Reindex report published", port.Fields{"status": string(report.Status)})
	return nil
}
