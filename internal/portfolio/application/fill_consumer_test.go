package application

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	orderdomain "github.com/wyfcoding/tradingcore/internal/order/domain"
	"github.com/wyfcoding/tradingcore/internal/portfolio/domain"
	"github.com/wyfcoding/tradingcore/pkg/logger"
	"github.com/wyfcoding/tradingcore/pkg/mq"
)

type fakeEventSource struct {
	queue     []*mq.Message
	committed []int64
}

func (s *fakeEventSource) FetchMessage(context.Context) (*mq.Message, error) {
	if len(s.queue) == 0 {
		return nil, context.Canceled
	}
	msg := s.queue[0]
	s.queue = s.queue[1:]
	return msg, nil
}

func (s *fakeEventSource) CommitMessages(_ context.Context, msgs ...*mq.Message) error {
	for _, msg := range msgs {
		s.committed = append(s.committed, msg.Offset)
	}
	return nil
}

type flakyApplier struct {
	failures int
	attempts int
	applied  []domain.Fill
	released []int64
}

func (a *flakyApplier) ApplyFill(_ context.Context, fill domain.Fill) error {
	a.attempts++
	if a.attempts <= a.failures {
		return errors.New("database unavailable")
	}
	a.applied = append(a.applied, fill)
	return nil
}

func (a *flakyApplier) ReleaseReservation(_ context.Context, orderID int64) error {
	a.released = append(a.released, orderID)
	return nil
}

func eventMessage(t *testing.T, offset int64, eventType string, payload interface{}) *mq.Message {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	value, err := json.Marshal(eventEnvelope{
		EventID:   "test-event",
		EventType: eventType,
		Payload:   body,
	})
	require.NoError(t, err)
	return &mq.Message{Topic: "orders", Offset: offset, Value: value}
}

// 落账短暂失败时必须原地重试，位点只在成功后提交，
// 保证成交不会因瞬时故障被丢弃。
func TestFillConsumerRetriesTransientFailure(t *testing.T) {
	source := &fakeEventSource{queue: []*mq.Message{
		eventMessage(t, 42, orderdomain.EventTypeOrderFilled, orderdomain.OrderFilledEvent{
			OrderID:      7,
			Symbol:       "AAPL",
			FillQuantity: decimal.NewFromInt(10),
			FillPrice:    decimal.NewFromInt(100),
			Currency:     "USD",
			Time:         time.Now().UTC(),
		}),
	}}
	applier := &flakyApplier{failures: 2}

	consumer := NewFillConsumer(source, applier, logger.Get())
	consumer.retryDelay = time.Millisecond
	consumer.Run(context.Background())

	assert.Equal(t, 3, applier.attempts)
	require.Len(t, applier.applied, 1)
	assert.Equal(t, int64(7), applier.applied[0].OrderID)
	assert.Equal(t, []int64{42}, source.committed)
}

// 不可解析的消息跳过并提交位点，不能卡死分区
func TestFillConsumerSkipsMalformedMessage(t *testing.T) {
	source := &fakeEventSource{queue: []*mq.Message{
		{Topic: "orders", Offset: 5, Value: []byte("not json")},
		eventMessage(t, 6, orderdomain.EventTypeOrderCanceled, orderdomain.OrderCanceledEvent{OrderID: 3}),
	}}
	applier := &flakyApplier{}

	consumer := NewFillConsumer(source, applier, logger.Get())
	consumer.retryDelay = time.Millisecond
	consumer.Run(context.Background())

	assert.Empty(t, applier.applied)
	assert.Equal(t, []int64{3}, applier.released)
	assert.Equal(t, []int64{5, 6}, source.committed)
}

// ctx 取消时重试循环退出，消息不提交，重启后重投
func TestFillConsumerStopsOnCancelDuringRetry(t *testing.T) {
	source := &fakeEventSource{queue: []*mq.Message{
		eventMessage(t, 8, orderdomain.EventTypeOrderFilled, orderdomain.OrderFilledEvent{
			OrderID: 1, Symbol: "AAPL",
			FillQuantity: decimal.NewFromInt(1), FillPrice: decimal.NewFromInt(100),
		}),
	}}
	applier := &flakyApplier{failures: 1 << 30}

	ctx, cancel := context.WithCancel(context.Background())
	consumer := NewFillConsumer(source, applier, logger.Get())
	consumer.retryDelay = 10 * time.Millisecond

	done := make(chan struct{})
	go func() {
		consumer.Run(ctx)
		close(done)
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop on cancel")
	}
	assert.Empty(t, source.committed)
}
