package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/hydro-lag-etl/internal/config"
	"github.com/couchcryptid/hydro-lag-etl/internal/domain"
	"github.com/couchcryptid/hydro-lag-etl/internal/observability"
)

// DailyRecord is one aligned date as published on the dataset topic.
// Absent fields are omitted from Values.
type DailyRecord struct {
	RunID     string             `json:"run_id"`
	Date      string             `json:"date"`
	Year      int                `json:"year"`
	DayOfYear int                `json:"day_of_year"`
	Values    map[string]float64 `json:"values"`
	Filled    []string           `json:"filled,omitempty"`
}

// PeriodRecord is one period report as published on the summary topic.
type PeriodRecord struct {
	RunID       string    `json:"run_id"`
	GeneratedAt time.Time `json:"generated_at"`
	domain.PeriodReport
}

// messageWriter is the subset of *kafkago.Writer used by Writer.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes run results to Kafka: one message per date on the dataset
// topic and one message per period on the summary topic.
// It implements pipeline.Loader.
type Writer struct {
	writer       messageWriter
	datasetTopic string
	summaryTopic string
	logger       *slog.Logger
	metrics      *observability.Metrics
}

// NewWriter creates a Kafka producer for the configured topics.
func NewWriter(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Writer{
		writer:       w,
		datasetTopic: cfg.KafkaDatasetTopic,
		summaryTopic: cfg.KafkaSummaryTopic,
		logger:       logger,
		metrics:      metrics,
	}
}

// Load serializes and publishes a report in a single WriteMessages call.
func (w *Writer) Load(ctx context.Context, rep domain.Report) error {
	msgs, err := w.messages(rep)
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		return nil
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish report %s: %w", rep.RunID, err)
	}
	w.metrics.MessagesProduced.Add(float64(len(msgs)))
	w.logger.Info("report published", "run_id", rep.RunID, "messages", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

func (w *Writer) messages(rep domain.Report) ([]kafkago.Message, error) {
	msgs := make([]kafkago.Message, 0, rep.Dataset.Len()+len(rep.Periods)+1)
	for _, row := range rep.Dataset.Rows {
		msg, err := serializeRow(rep, row)
		if err != nil {
			return nil, err
		}
		msg.Topic = w.datasetTopic
		msgs = append(msgs, msg)
	}
	for _, p := range append([]domain.PeriodReport{rep.Overall}, rep.Periods...) {
		msg, err := serializePeriod(rep, p)
		if err != nil {
			return nil, err
		}
		msg.Topic = w.summaryTopic
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// serializeRow marshals one dataset row keyed by its date, so that a
// compacted topic keeps the latest value per day.
func serializeRow(rep domain.Report, row domain.AlignedRow) (kafkago.Message, error) {
	rec := DailyRecord{
		RunID:     rep.RunID,
		Date:      row.Date.Format(time.DateOnly),
		Year:      row.Date.Year(),
		DayOfYear: row.Date.YearDay(),
		Values:    make(map[string]float64, len(row.Cells)),
	}
	for i, c := range row.Cells {
		name := rep.Dataset.Fields[i]
		if c.Absent {
			continue
		}
		rec.Values[name] = c.Value
		if c.Filled {
			rec.Filled = append(rec.Filled, name)
		}
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize row %s: %w", rec.Date, err)
	}
	return kafkago.Message{
		Key:     []byte(rec.Date),
		Value:   data,
		Headers: headers(rep),
	}, nil
}

func serializePeriod(rep domain.Report, p domain.PeriodReport) (kafkago.Message, error) {
	data, err := json.Marshal(PeriodRecord{RunID: rep.RunID, GeneratedAt: rep.GeneratedAt, PeriodReport: p})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize period %s: %w", p.Name, err)
	}
	return kafkago.Message{
		Key:     []byte(p.Name),
		Value:   data,
		Headers: append(headers(rep), kafkago.Header{Key: "status", Value: []byte(p.Status)}),
	}, nil
}

func headers(rep domain.Report) []kafkago.Header {
	return []kafkago.Header{
		{Key: "run_id", Value: []byte(rep.RunID)},
		{Key: "generated_at", Value: []byte(rep.GeneratedAt.Format(time.RFC3339))},
	}
}
