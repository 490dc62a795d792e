package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	brokerage "github.com/wyfcoding/tradingcore/internal/brokerage/domain"
	"github.com/wyfcoding/tradingcore/internal/order/domain"
	referencedata "github.com/wyfcoding/tradingcore/internal/referencedata/domain"
	"github.com/wyfcoding/tradingcore/pkg/logger"
	"github.com/wyfcoding/tradingcore/pkg/metrics"
)

type memoryOrderRepo struct {
	orders map[int64]*domain.Order
}

func newMemoryOrderRepo() *memoryOrderRepo {
	return &memoryOrderRepo{orders: map[int64]*domain.Order{}}
}

func (r *memoryOrderRepo) Save(_ context.Context, ord *domain.Order) error {
	r.orders[ord.ID] = ord.Clone()
	return nil
}

func (r *memoryOrderRepo) Get(_ context.Context, orderID int64) (*domain.Order, error) {
	ord, ok := r.orders[orderID]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return ord.Clone(), nil
}

func (r *memoryOrderRepo) ListBySymbol(_ context.Context, symbol string, _, _ int) ([]*domain.Order, int64, error) {
	var out []*domain.Order
	for _, ord := range r.orders {
		if ord.Symbol == symbol {
			out = append(out, ord.Clone())
		}
	}
	return out, int64(len(out)), nil
}

func (r *memoryOrderRepo) ListOpen(_ context.Context) ([]*domain.Order, error) {
	var out []*domain.Order
	for _, ord := range r.orders {
		if !ord.Status.IsTerminal() {
			out = append(out, ord.Clone())
		}
	}
	return out, nil
}

func (r *memoryOrderRepo) MaxOrderID(_ context.Context) (int64, error) {
	var max int64
	for id := range r.orders {
		if id > max {
			max = id
		}
	}
	return max, nil
}

type recordingPublisher struct {
	events   []string
	payloads []interface{}
}

func (p *recordingPublisher) Publish(_ context.Context, eventType string, _ string, payload interface{}) error {
	p.events = append(p.events, eventType)
	p.payloads = append(p.payloads, payload)
	return nil
}

type fakeHoldings struct {
	quantity decimal.Decimal
}

func (h *fakeHoldings) HoldingQuantity(context.Context, string) (decimal.Decimal, error) {
	return h.quantity, nil
}

type noopTxRunner struct{}

func (noopTxRunner) WithTx(_ context.Context, fn func(*gorm.DB) error) error {
	return fn(nil)
}

type failingTxRunner struct{}

func (failingTxRunner) WithTx(context.Context, func(*gorm.DB) error) error {
	return errors.New("database unavailable")
}

type recordingFundsGateway struct {
	reserved []*ReserveFundsRequest
	released []*ReserveFundsRequest
}

func (g *recordingFundsGateway) Reserve(_ context.Context, req *ReserveFundsRequest) error {
	g.reserved = append(g.reserved, req)
	return nil
}

func (g *recordingFundsGateway) Release(_ context.Context, req *ReserveFundsRequest) error {
	g.released = append(g.released, req)
	return nil
}

type fixture struct {
	manager   *OrderManager
	repo      *memoryOrderRepo
	publisher *recordingPublisher
	holdings  *fakeHoldings
	registry  *referencedata.Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	registry := referencedata.NewRegistry()
	sec := referencedata.NewSecurity("AAPL", referencedata.SecurityTypeEquity, "USD")
	sec.UpdateMarketPrice(decimal.NewFromInt(100), decimal.NewFromInt(99), decimal.NewFromInt(101))
	registry.Register(sec)

	repo := newMemoryOrderRepo()
	publisher := &recordingPublisher{}
	holdings := &fakeHoldings{quantity: decimal.Zero}

	manager := NewOrderManager(
		repo,
		publisher,
		registry,
		brokerage.NewEquityModel(),
		holdings,
		domain.NewIDGenerator(1),
		noopTxRunner{},
		metrics.New("order_test"),
		logger.Get(),
	)
	return &fixture{manager: manager, repo: repo, publisher: publisher, holdings: holdings, registry: registry}
}

func submitRequest(symbol string, quantity int64) *domain.SubmitOrderRequest {
	return &domain.SubmitOrderRequest{
		Type:     domain.TypeMarket,
		Symbol:   symbol,
		Quantity: decimal.NewFromInt(quantity),
		Time:     time.Now().UTC(),
	}
}

func TestSubmitSuccess(t *testing.T) {
	f := newFixture(t)

	ticket, err := f.manager.Submit(context.Background(), submitRequest("AAPL", 100))
	require.NoError(t, err)
	require.True(t, ticket.Response.IsSuccess())
	require.NotNil(t, ticket.Order)
	assert.Equal(t, domain.StatusSubmitted, ticket.Order.Status)
	assert.Equal(t, "USD", ticket.Order.PriceCurrency)
	require.NotNil(t, ticket.Order.SubmissionData)
	assert.True(t, ticket.Order.SubmissionData.LastPrice.Equal(decimal.NewFromInt(100)))

	saved, err := f.repo.Get(context.Background(), ticket.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSubmitted, saved.Status)
	assert.Equal(t, []string{domain.EventTypeOrderSubmitted}, f.publisher.events)
}

func TestSubmitUnknownSecurity(t *testing.T) {
	f := newFixture(t)

	ticket, err := f.manager.Submit(context.Background(), submitRequest("MISSING", 100))
	require.NoError(t, err)
	assert.Equal(t, domain.ErrorCodeInvalidRequest, ticket.Response.ErrorCode)
	assert.Empty(t, f.publisher.events)
}

func TestSubmitBrokerageRefused(t *testing.T) {
	f := newFixture(t)
	crypto := referencedata.NewSecurity("BTCUSD", referencedata.SecurityTypeCrypto, "USD")
	crypto.UpdateMarketPrice(decimal.NewFromInt(50000), decimal.NewFromInt(49999), decimal.NewFromInt(50001))
	f.registry.Register(crypto)

	ticket, err := f.manager.Submit(context.Background(), submitRequest("BTCUSD", 1))
	require.NoError(t, err)
	assert.Equal(t, domain.ErrorCodeBrokerageModelRefused, ticket.Response.ErrorCode)
	assert.NotEmpty(t, ticket.Response.ErrorMessage)

	// 拒单不落库不发事件
	assert.Empty(t, f.repo.orders)
	assert.Empty(t, f.publisher.events)
}

func TestSubmitOrderCrossesZero(t *testing.T) {
	f := newFixture(t)
	f.holdings.quantity = decimal.NewFromInt(100)

	ticket, err := f.manager.Submit(context.Background(), submitRequest("AAPL", -150))
	require.NoError(t, err)
	assert.Equal(t, domain.ErrorCodeOrderCrossesZero, ticket.Response.ErrorCode)
	assert.Empty(t, f.repo.orders)

	// 恰好平仓不算穿越
	ticket, err = f.manager.Submit(context.Background(), submitRequest("AAPL", -100))
	require.NoError(t, err)
	assert.True(t, ticket.Response.IsSuccess())
}

func TestUpdateOrder(t *testing.T) {
	f := newFixture(t)
	ticket, err := f.manager.Submit(context.Background(), submitRequest("AAPL", 100))
	require.NoError(t, err)
	orderID := ticket.Order.ID

	newQuantity := decimal.NewFromInt(50)
	updated, err := f.manager.Update(context.Background(), &domain.UpdateOrderRequest{
		OrderID:  orderID,
		Quantity: &newQuantity,
	})
	require.NoError(t, err)
	require.True(t, updated.Response.IsSuccess())
	assert.True(t, updated.Order.Quantity.Equal(newQuantity))

	// 不存在的订单
	missing, err := f.manager.Update(context.Background(), &domain.UpdateOrderRequest{OrderID: 999})
	require.NoError(t, err)
	assert.Equal(t, domain.ErrorCodeUnableToFindOrder, missing.Response.ErrorCode)
}

func TestCancelOrder(t *testing.T) {
	f := newFixture(t)
	ticket, err := f.manager.Submit(context.Background(), submitRequest("AAPL", 100))
	require.NoError(t, err)
	orderID := ticket.Order.ID

	canceled, err := f.manager.Cancel(context.Background(), &domain.CancelOrderRequest{OrderID: orderID, Tag: "user requested"})
	require.NoError(t, err)
	require.True(t, canceled.Response.IsSuccess())
	assert.Equal(t, domain.StatusCanceled, canceled.Order.Status)
	require.NotNil(t, canceled.Order.CanceledTime)

	// 终态订单不可重复撤销
	again, err := f.manager.Cancel(context.Background(), &domain.CancelOrderRequest{OrderID: orderID})
	require.NoError(t, err)
	assert.Equal(t, domain.ErrorCodeInvalidOrderStatus, again.Response.ErrorCode)
}

func TestProcessFillLifecycle(t *testing.T) {
	f := newFixture(t)
	ticket, err := f.manager.Submit(context.Background(), submitRequest("AAPL", 100))
	require.NoError(t, err)
	orderID := ticket.Order.ID

	now := time.Now().UTC()
	require.NoError(t, f.manager.ProcessFill(context.Background(), orderID, decimal.NewFromInt(40), decimal.NewFromInt(100), decimal.Zero, "", now))
	partial, err := f.repo.Get(context.Background(), orderID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPartiallyFilled, partial.Status)

	require.NoError(t, f.manager.ProcessFill(context.Background(), orderID, decimal.NewFromInt(60), decimal.NewFromInt(101), decimal.Zero, "", now))
	filled, err := f.repo.Get(context.Background(), orderID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFilled, filled.Status)

	assert.Equal(t, []string{
		domain.EventTypeOrderSubmitted,
		domain.EventTypeOrderFilled,
		domain.EventTypeOrderFilled,
	}, f.publisher.events)
}

func TestSubmitReservesFunds(t *testing.T) {
	f := newFixture(t)
	gateway := &recordingFundsGateway{}
	f.manager.SetFundsGateway(gateway)

	ticket, err := f.manager.Submit(context.Background(), submitRequest("AAPL", 100))
	require.NoError(t, err)
	require.True(t, ticket.Response.IsSuccess())

	// 100 股 * 100 价 / 2 倍杠杆
	require.Len(t, gateway.reserved, 1)
	assert.Equal(t, ticket.Order.ID, gateway.reserved[0].OrderID)
	assert.Equal(t, "USD", gateway.reserved[0].Currency)
	assert.Equal(t, "5000", gateway.reserved[0].Amount)
	assert.Equal(t, "1", gateway.reserved[0].Fee)
	assert.Empty(t, gateway.released)
}

func TestSubmitReleasesFundsWhenPersistFails(t *testing.T) {
	f := newFixture(t)
	gateway := &recordingFundsGateway{}
	f.manager.SetFundsGateway(gateway)
	f.manager.tx = failingTxRunner{}

	ticket, err := f.manager.Submit(context.Background(), submitRequest("AAPL", 100))
	require.NoError(t, err)
	assert.Equal(t, domain.ErrorCodeProcessingError, ticket.Response.ErrorCode)

	// 落库失败后冻结必须解除，否则资金被永久占用
	require.Len(t, gateway.reserved, 1)
	require.Len(t, gateway.released, 1)
	assert.Equal(t, gateway.reserved[0].OrderID, gateway.released[0].OrderID)
	assert.Equal(t, gateway.reserved[0].Amount, gateway.released[0].Amount)
}

func TestProcessFillCarriesFee(t *testing.T) {
	f := newFixture(t)
	ticket, err := f.manager.Submit(context.Background(), submitRequest("AAPL", 100))
	require.NoError(t, err)
	orderID := ticket.Order.ID
	now := time.Now().UTC()

	// 券商回报的实付手续费原样透传
	reported := decimal.NewFromFloat(0.37)
	require.NoError(t, f.manager.ProcessFill(context.Background(), orderID, decimal.NewFromInt(40), decimal.NewFromInt(100), reported, "USD", now))
	event, ok := f.publisher.payloads[len(f.publisher.payloads)-1].(domain.OrderFilledEvent)
	require.True(t, ok)
	assert.True(t, event.Fee.Equal(reported))
	assert.Equal(t, "USD", event.FeeCurrency)

	// 未回报手续费时按整单费用折算到成交份额：1 USD * 60/100
	require.NoError(t, f.manager.ProcessFill(context.Background(), orderID, decimal.NewFromInt(60), decimal.NewFromInt(100), decimal.Zero, "", now))
	event, ok = f.publisher.payloads[len(f.publisher.payloads)-1].(domain.OrderFilledEvent)
	require.True(t, ok)
	assert.True(t, event.Fee.Equal(decimal.NewFromFloat(0.6)), "got fee %s", event.Fee)
	assert.Equal(t, "USD", event.FeeCurrency)
}

func TestQueryServiceFallsBackToRepo(t *testing.T) {
	f := newFixture(t)
	ticket, err := f.manager.Submit(context.Background(), submitRequest("AAPL", 100))
	require.NoError(t, err)

	qs := NewOrderQueryService(f.repo, nil)
	got, err := qs.GetOrder(context.Background(), ticket.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, ticket.Order.ID, got.ID)

	_, err = qs.GetOrder(context.Background(), 12345)
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}
