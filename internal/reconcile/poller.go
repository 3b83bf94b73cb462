package reconcile

import (
	"context"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	d "github.com/fjod/go_cart/storefront/domain"
)

const EventOrderUnsaved = "order.persistence_failed"

type OrderSaver interface {
	SaveOrder(ctx context.Context, order *d.Order) error
}

// MessageWriter is satisfied by *kafka.Writer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type PollerConfig struct {
	Interval    time.Duration
	BatchSize   int
	MaxAttempts int
	SaveTimeout time.Duration
}

func DefaultPollerConfig() PollerConfig {
	return PollerConfig{
		Interval:    10 * time.Second,
		BatchSize:   50,
		MaxAttempts: 5,
		SaveTimeout: 5 * time.Second,
	}
}

// Poller re-sends outbox orders to the backend. Entries that keep failing are
// published for manual follow-up and escalated.
type Poller struct {
	cfg    PollerConfig
	repo   RepoInterface
	saver  OrderSaver
	writer MessageWriter
	logger *zap.Logger
}

// NewPoller builds a poller. writer may be nil, in which case escalations are
// only logged.
func NewPoller(repo RepoInterface, saver OrderSaver, writer MessageWriter, cfg PollerConfig, log *zap.Logger) *Poller {
	if log == nil {
		log = zap.NewNop()
	}
	def := DefaultPollerConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.SaveTimeout <= 0 {
		cfg.SaveTimeout = def.SaveTimeout
	}
	return &Poller{cfg: cfg, repo: repo, saver: saver, writer: writer, logger: log}
}

func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
}

func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.processPending(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// processPending returns how many entries reached the backend.
func (p *Poller) processPending(ctx context.Context) int {
	entries, err := p.repo.Pending(ctx, p.cfg.BatchSize)
	if err != nil {
		p.logger.Error("failed to fetch outbox entries", zap.Error(err))
		return 0
	}

	saved := 0
	for _, e := range entries {
		if ctx.Err() != nil {
			return saved
		}
		if p.retry(ctx, e) {
			saved++
		}
	}
	return saved
}

func (p *Poller) retry(ctx context.Context, e *Entry) bool {
	log := p.logger.With(zap.String("order_id", e.OrderID), zap.Int64("entry_id", e.ID))

	order, err := e.Order()
	if err != nil {
		log.Error("dropping unreadable outbox entry", zap.Error(err))
		p.escalate(ctx, e, log)
		return false
	}

	saveCtx, cancel := context.WithTimeout(ctx, p.cfg.SaveTimeout)
	err = p.saver.SaveOrder(saveCtx, order)
	cancel()

	if err == nil {
		if err := p.repo.MarkProcessed(ctx, e.ID); err != nil {
			log.Error("failed to mark outbox entry as processed", zap.Error(err))
		}
		log.Info("order saved from outbox", zap.Int("attempts", e.Attempts+1))
		return true
	}

	attempts, markErr := p.repo.MarkFailed(ctx, e.ID, err)
	if markErr != nil {
		log.Error("failed to record outbox attempt", zap.Error(markErr))
		return false
	}
	log.Warn("order save retry failed", zap.Int("attempts", attempts), zap.Error(err))

	if attempts >= p.cfg.MaxAttempts {
		e.Attempts = attempts
		e.LastError = err.Error()
		p.escalate(ctx, e, log)
	}
	return false
}

func (p *Poller) escalate(ctx context.Context, e *Entry, log *zap.Logger) {
	if p.writer != nil {
		msg := kafka.Message{
			Key:   []byte(e.OrderID),
			Value: e.Payload,
			Headers: []kafka.Header{
				{Key: "event_type", Value: []byte(EventOrderUnsaved)},
				{Key: "username", Value: []byte(e.Username)},
				{Key: "attempts", Value: []byte(strconv.Itoa(e.Attempts))},
				{Key: "last_error", Value: []byte(e.LastError)},
			},
		}
		if err := p.writer.WriteMessages(ctx, msg); err != nil {
			// stays pending and is picked up again next tick
			log.Error("failed to publish unsaved order", zap.Error(err))
			return
		}
	}

	if err := p.repo.MarkEscalated(ctx, e.ID); err != nil {
		log.Error("failed to mark outbox entry as escalated", zap.Error(err))
		return
	}
	log.Error("order escalated after repeated save failures", zap.Int("attempts", e.Attempts))
}
