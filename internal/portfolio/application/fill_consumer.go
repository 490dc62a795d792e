package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	orderdomain "github.com/wyfcoding/tradingcore/internal/order/domain"
	"github.com/wyfcoding/tradingcore/internal/portfolio/domain"
	"github.com/wyfcoding/tradingcore/pkg/mq"
)

// eventEnvelope order 服务 outbox relay 投递的消息信封
type eventEnvelope struct {
	EventID   string          `json:"event_id"`
	EventType string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
}

// EventSource 订单事件来源，位点在处理成功后手动提交
type EventSource interface {
	FetchMessage(ctx context.Context) (*mq.Message, error)
	CommitMessages(ctx context.Context, msgs ...*mq.Message) error
}

// FillApplier 成交与解冻的落账目标
type FillApplier interface {
	ApplyFill(ctx context.Context, fill domain.Fill) error
	ReleaseReservation(ctx context.Context, orderID int64) error
}

// errBadMessage 消息本身不可解析，重试无意义，跳过并提交位点
var errBadMessage = errors.New("malformed event message")

// FillConsumer 消费订单事件流，把成交落到组合、把撤单的冻结资金解冻。
type FillConsumer struct {
	source     EventSource
	service    FillApplier
	logger     *slog.Logger
	retryDelay time.Duration
}

// NewFillConsumer 构造函数
func NewFillConsumer(source EventSource, service FillApplier, logger *slog.Logger) *FillConsumer {
	return &FillConsumer{
		source:     source,
		service:    service,
		logger:     logger.With("module", "fill_consumer"),
		retryDelay: time.Second,
	}
}

// Run 消费循环，直到 ctx 取消。
// 落账失败的消息原地重试且不提交位点，保证至少一次生效；
// 不可解析的消息记录后跳过，避免毒消息卡死分区。
func (c *FillConsumer) Run(ctx context.Context) {
	c.logger.InfoContext(ctx, "fill consumer started")
	for {
		message, err := c.source.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				c.logger.Info("fill consumer stopped")
				return
			}
			c.logger.ErrorContext(ctx, "failed to fetch message", "error", err)
			continue
		}

		for {
			err := c.handle(ctx, message)
			if err == nil {
				break
			}
			if errors.Is(err, errBadMessage) {
				c.logger.WarnContext(ctx, "malformed event skipped",
					"topic", message.Topic, "offset", message.Offset, "error", err)
				break
			}
			c.logger.ErrorContext(ctx, "failed to handle event, will retry",
				"topic", message.Topic, "offset", message.Offset, "error", err)
			select {
			case <-ctx.Done():
				c.logger.Info("fill consumer stopped")
				return
			case <-time.After(c.retryDelay):
			}
		}

		if err := c.source.CommitMessages(ctx, message); err != nil {
			c.logger.ErrorContext(ctx, "failed to commit offset",
				"topic", message.Topic, "offset", message.Offset, "error", err)
		}
	}
}

func (c *FillConsumer) handle(ctx context.Context, message *mq.Message) error {
	var envelope eventEnvelope
	if err := message.UnmarshalPayload(&envelope); err != nil {
		return fmt.Errorf("%w: %v", errBadMessage, err)
	}

	switch envelope.EventType {
	case orderdomain.EventTypeOrderFilled:
		var event orderdomain.OrderFilledEvent
		if err := json.Unmarshal(envelope.Payload, &event); err != nil {
			return fmt.Errorf("%w: %v", errBadMessage, err)
		}
		return c.service.ApplyFill(ctx, domain.Fill{
			OrderID:      event.OrderID,
			Symbol:       event.Symbol,
			FillQuantity: event.FillQuantity,
			FillPrice:    event.FillPrice,
			Currency:     event.Currency,
			Fee:          event.Fee,
			FeeCurrency:  event.FeeCurrency,
			UTCTime:      event.Time.UTC(),
		})

	case orderdomain.EventTypeOrderCanceled:
		var event orderdomain.OrderCanceledEvent
		if err := json.Unmarshal(envelope.Payload, &event); err != nil {
			return fmt.Errorf("%w: %v", errBadMessage, err)
		}
		return c.service.ReleaseReservation(ctx, event.OrderID)

	default:
		// 其余订单事件对组合无影响
		return nil
	}
}
