package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/wyfcoding/tradingcore/internal/order/infrastructure/messaging"
	"github.com/wyfcoding/tradingcore/pkg/mq"
)

// RelayService 把订单 outbox 中待投递的事件搬运到 Kafka，
// 并定期清理已投递的历史消息。独立部署，订单服务只管落库。
type RelayService struct {
	publisher *messaging.OutboxEventPublisher
	producer  *mq.KafkaProducer
	topic     string
	batchSize int
	retention time.Duration
	logger    *slog.Logger
}

// NewRelayService 构造函数
func NewRelayService(
	publisher *messaging.OutboxEventPublisher,
	producer *mq.KafkaProducer,
	topic string,
	batchSize int,
	retention time.Duration,
	logger *slog.Logger,
) *RelayService {
	return &RelayService{
		publisher: publisher,
		producer:  producer,
		topic:     topic,
		batchSize: batchSize,
		retention: retention,
		logger:    logger.With("module", "relay_service"),
	}
}

// RelayOnce 搬运一批待投递消息，返回投递条数
func (s *RelayService) RelayOnce(ctx context.Context) (int, error) {
	return s.publisher.Relay(ctx, s.producer, s.topic, s.batchSize)
}

// PendingCount 当前积压的消息数
func (s *RelayService) PendingCount(ctx context.Context) (int64, error) {
	return s.publisher.PendingCount(ctx)
}

// Run 周期性搬运直到 ctx 取消，每小时清理一次过期消息
func (s *RelayService) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	cleanup := time.NewTicker(time.Hour)
	defer cleanup.Stop()

	s.logger.InfoContext(ctx, "outbox relay started",
		"topic", s.topic, "interval", interval.String(), "batch_size", s.batchSize)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("outbox relay stopped")
			return
		case <-ticker.C:
			sent, err := s.RelayOnce(ctx)
			if err != nil {
				s.logger.ErrorContext(ctx, "outbox relay round failed", "sent", sent, "error", err)
				continue
			}
			if sent > 0 {
				s.logger.InfoContext(ctx, "outbox messages relayed", "sent", sent)
			}
		case <-cleanup.C:
			if err := s.publisher.Cleanup(ctx, time.Now().Add(-s.retention)); err != nil {
				s.logger.ErrorContext(ctx, "outbox cleanup failed", "error", err)
			}
		}
	}
}
