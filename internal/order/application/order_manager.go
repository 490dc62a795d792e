package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dtm-labs/client/dtmcli"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	brokerage "github.com/wyfcoding/tradingcore/internal/brokerage/domain"
	execution "github.com/wyfcoding/tradingcore/internal/execution/domain"
	"github.com/wyfcoding/tradingcore/internal/order/domain"
	referencedata "github.com/wyfcoding/tradingcore/internal/referencedata/domain"
	"github.com/wyfcoding/tradingcore/pkg/db"
	"github.com/wyfcoding/tradingcore/pkg/metrics"
)

// HoldingsProvider 查询证券当前带符号持仓，由 portfolio 服务提供
type HoldingsProvider interface {
	HoldingQuantity(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// TxRunner 事务执行器，持久化与 outbox 登记在同一事务内完成
type TxRunner interface {
	WithTx(ctx context.Context, fn func(*gorm.DB) error) error
}

// FundsGateway 向 portfolio 服务冻结/解冻下单资金。
// 生产实现走 DTM Saga，为 nil 时跳过资金冻结（单测与单机模式）。
type FundsGateway interface {
	Reserve(ctx context.Context, req *ReserveFundsRequest) error
	Release(ctx context.Context, req *ReserveFundsRequest) error
}

// OrderManager 处理所有订单写入操作（Commands）。
// 提交链路：证券校验 -> 券商策略 -> 穿仓判定 -> 资金冻结 Saga ->
// 本地事务持久化 + outbox 事件。
type OrderManager struct {
	repo           domain.OrderRepository
	publisher      domain.EventPublisher
	securities     referencedata.SecurityProvider
	brokerageModel brokerage.Model
	holdings       HoldingsProvider
	ids            *domain.IDGenerator
	tx             TxRunner
	funds          FundsGateway
	metrics        *metrics.Metrics
	logger         *slog.Logger
}

// NewOrderManager 构造函数
func NewOrderManager(
	repo domain.OrderRepository,
	publisher domain.EventPublisher,
	securities referencedata.SecurityProvider,
	brokerageModel brokerage.Model,
	holdings HoldingsProvider,
	ids *domain.IDGenerator,
	tx TxRunner,
	m *metrics.Metrics,
	logger *slog.Logger,
) *OrderManager {
	return &OrderManager{
		repo:           repo,
		publisher:      publisher,
		securities:     securities,
		brokerageModel: brokerageModel,
		holdings:       holdings,
		ids:            ids,
		tx:             tx,
		metrics:        m,
		logger:         logger.With("module", "order_manager"),
	}
}

// SetDTMServer 配置 DTM 服务与 portfolio 服务回调地址
func (m *OrderManager) SetDTMServer(dtmServer, portfolioSvcURL string) {
	m.funds = &dtmFundsGateway{server: dtmServer, branchBaseURL: portfolioSvcURL}
}

// SetFundsGateway 注入资金冻结网关
func (m *OrderManager) SetFundsGateway(gateway FundsGateway) {
	m.funds = gateway
}

// Submit 受理订单提交请求。
// 业务拒绝（策略拒单、穿仓、状态不符）通过凭据内的错误码表达，
// 只有基础设施故障才返回 error。
func (m *OrderManager) Submit(ctx context.Context, req *domain.SubmitOrderRequest) (*domain.OrderTicket, error) {
	if req.Symbol == "" {
		return rejected(0, domain.ErrorCodeInvalidRequest, "symbol is required"), nil
	}

	sec, err := m.securities.Get(ctx, req.Symbol)
	if err != nil {
		return rejected(0, domain.ErrorCodeInvalidRequest, fmt.Sprintf("unknown security: %s", req.Symbol)), nil
	}

	req.OrderID = m.ids.Next()
	if req.Time.IsZero() {
		req.Time = time.Now().UTC()
	}

	ord, err := domain.CreateOrder(req)
	if err != nil {
		return rejected(req.OrderID, domain.ErrorCodeInvalidRequest, err.Error()), nil
	}

	// 提交时点的行情快照，供成交回放与审计
	bid, ask, last := sec.SubmissionPrices()
	ord.SubmissionData = &domain.SubmissionData{BidPrice: bid, AskPrice: ask, LastPrice: last}
	ord.PriceCurrency = sec.QuoteCurrency
	ord.Price = last

	if ok, msg := m.brokerageModel.CanSubmitOrder(sec, ord); !ok {
		m.metrics.OrdersRejected.Inc()
		m.logger.WarnContext(ctx, "order refused by brokerage model",
			"order_id", ord.ID, "symbol", ord.Symbol, "reason", msg)
		return rejected(ord.ID, domain.ErrorCodeBrokerageModelRefused, msg), nil
	}

	holding, err := m.holdings.HoldingQuantity(ctx, ord.Symbol)
	if err != nil {
		m.logger.ErrorContext(ctx, "failed to query holdings", "symbol", ord.Symbol, "error", err)
		return rejected(ord.ID, domain.ErrorCodeProcessingError, "holdings unavailable"), nil
	}
	if execution.OrderCrossesZero(holding, ord.Quantity) {
		m.metrics.OrdersRejected.Inc()
		return rejected(ord.ID, domain.ErrorCodeOrderCrossesZero,
			fmt.Sprintf("order quantity %s would cross zero from holding %s, split the order into closing and opening legs",
				ord.Quantity, holding)), nil
	}

	payload := m.fundsPayload(sec, ord)
	if m.funds != nil {
		if err := m.funds.Reserve(ctx, payload); err != nil {
			m.logger.ErrorContext(ctx, "funds reservation failed", "order_id", ord.ID, "error", err)
			return rejected(ord.ID, domain.ErrorCodeProcessingError, "insufficient funds or reservation failure"), nil
		}
	}

	if err := ord.SetStatus(domain.StatusSubmitted); err != nil {
		return nil, err
	}

	err = m.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txCtx := db.WithTxContext(ctx, tx)
		if err := m.repo.Save(txCtx, ord); err != nil {
			return err
		}
		return m.publisher.Publish(txCtx, domain.EventTypeOrderSubmitted, ord.Symbol, domain.OrderSubmittedEvent{
			OrderID:  ord.ID,
			Symbol:   ord.Symbol,
			Type:     ord.Type.String(),
			Quantity: ord.Quantity,
			Time:     ord.Time,
		})
	})
	if err != nil {
		m.logger.ErrorContext(ctx, "failed to persist order", "order_id", ord.ID, "error", err)
		// 冻结已成功但订单没落库，立即解冻，否则资金被永久占用
		if m.funds != nil {
			if relErr := m.funds.Release(ctx, payload); relErr != nil {
				m.logger.ErrorContext(ctx, "failed to release funds after persist failure",
					"order_id", ord.ID, "error", relErr)
			}
		}
		return rejected(ord.ID, domain.ErrorCodeProcessingError, "failed to persist order"), nil
	}

	m.metrics.OrdersSubmitted.Inc()
	m.metrics.OrdersActive.Inc()
	m.logger.InfoContext(ctx, "order submitted",
		"order_id", ord.ID, "symbol", ord.Symbol, "type", ord.Type.String(), "quantity", ord.Quantity)

	return &domain.OrderTicket{Order: ord.Clone(), Response: domain.SuccessResponse(ord.ID)}, nil
}

// fundsPayload 按券商策略计算下单所需冻结金额与预估手续费
func (m *OrderManager) fundsPayload(sec *referencedata.Security, ord *domain.Order) *ReserveFundsRequest {
	required := m.brokerageModel.GetBuyingPowerModel(sec).RequiredFunds(sec, ord)
	fee, feeCurrency := m.brokerageModel.GetFeeModel(sec).GetOrderFee(sec, ord)
	return &ReserveFundsRequest{
		OrderID:     ord.ID,
		Symbol:      ord.Symbol,
		Currency:    sec.QuoteCurrency,
		Amount:      required.String(),
		Fee:         fee.String(),
		FeeCurrency: feeCurrency,
	}
}

// dtmFundsGateway 基于 DTM Saga 的资金冻结网关。
// 正向分支冻结，补偿分支解冻；解冻也走单分支 saga，复用屏障幂等。
type dtmFundsGateway struct {
	server        string
	branchBaseURL string
}

func (g *dtmFundsGateway) Reserve(ctx context.Context, req *ReserveFundsRequest) error {
	saga := dtmcli.NewSaga(g.server, uuid.NewString()).
		Add(g.branchBaseURL+"/api/v1/portfolio/funds/reserve",
			g.branchBaseURL+"/api/v1/portfolio/funds/release", req)
	saga.WaitResult = true
	return saga.Submit()
}

func (g *dtmFundsGateway) Release(ctx context.Context, req *ReserveFundsRequest) error {
	saga := dtmcli.NewSaga(g.server, uuid.NewString()).
		Add(g.branchBaseURL+"/api/v1/portfolio/funds/release", "", req)
	saga.WaitResult = true
	return saga.Submit()
}

// Update 受理改单请求，仅允许修改数量、限价、止损价与备注。
func (m *OrderManager) Update(ctx context.Context, req *domain.UpdateOrderRequest) (*domain.OrderTicket, error) {
	ord, err := m.repo.Get(ctx, req.OrderID)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			return rejected(req.OrderID, domain.ErrorCodeUnableToFindOrder, "order not found"), nil
		}
		return nil, err
	}
	if ord.Status.IsTerminal() {
		return rejected(ord.ID, domain.ErrorCodeInvalidOrderStatus,
			fmt.Sprintf("order is already %s", ord.Status)), nil
	}

	sec, err := m.securities.Get(ctx, ord.Symbol)
	if err != nil {
		return rejected(ord.ID, domain.ErrorCodeProcessingError, "security no longer registered"), nil
	}
	if ok, msg := m.brokerageModel.CanUpdateOrder(sec, ord, req); !ok {
		return rejected(ord.ID, domain.ErrorCodeBrokerageModelRefused, msg), nil
	}

	if err := ord.ApplyUpdateOrderRequest(req); err != nil {
		return rejected(ord.ID, domain.ErrorCodeInvalidRequest, err.Error()), nil
	}

	err = m.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txCtx := db.WithTxContext(ctx, tx)
		if err := m.repo.Save(txCtx, ord); err != nil {
			return err
		}
		return m.publisher.Publish(txCtx, domain.EventTypeOrderUpdated, ord.Symbol, domain.OrderUpdatedEvent{
			OrderID:  ord.ID,
			Quantity: req.Quantity,
			Tag:      req.Tag,
			Time:     time.Now().UTC(),
		})
	})
	if err != nil {
		return rejected(ord.ID, domain.ErrorCodeProcessingError, "failed to persist order update"), nil
	}

	m.logger.InfoContext(ctx, "order updated", "order_id", ord.ID)
	return &domain.OrderTicket{Order: ord.Clone(), Response: domain.SuccessResponse(ord.ID)}, nil
}

// Cancel 受理撤单请求。portfolio 服务消费取消事件解冻剩余资金。
func (m *OrderManager) Cancel(ctx context.Context, req *domain.CancelOrderRequest) (*domain.OrderTicket, error) {
	ord, err := m.repo.Get(ctx, req.OrderID)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			return rejected(req.OrderID, domain.ErrorCodeUnableToFindOrder, "order not found"), nil
		}
		return nil, err
	}
	if ord.Status.IsTerminal() {
		return rejected(ord.ID, domain.ErrorCodeInvalidOrderStatus,
			fmt.Sprintf("order cannot be canceled, current status %s", ord.Status)), nil
	}

	if err := ord.SetStatus(domain.StatusCanceled); err != nil {
		return rejected(ord.ID, domain.ErrorCodeInvalidOrderStatus, err.Error()), nil
	}
	now := time.Now().UTC()
	ord.CanceledTime = &now
	if req.Tag != "" {
		ord.Tag = req.Tag
	}

	err = m.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txCtx := db.WithTxContext(ctx, tx)
		if err := m.repo.Save(txCtx, ord); err != nil {
			return err
		}
		return m.publisher.Publish(txCtx, domain.EventTypeOrderCanceled, ord.Symbol, domain.OrderCanceledEvent{
			OrderID: ord.ID,
			Symbol:  ord.Symbol,
			Tag:     ord.Tag,
			Time:    now,
		})
	})
	if err != nil {
		return rejected(ord.ID, domain.ErrorCodeProcessingError, "failed to persist cancellation"), nil
	}

	m.metrics.OrdersActive.Dec()
	m.logger.InfoContext(ctx, "order canceled", "order_id", ord.ID, "tag", ord.Tag)
	return &domain.OrderTicket{Order: ord.Clone(), Response: domain.SuccessResponse(ord.ID)}, nil
}

// ProcessFill 应用一笔成交回报并发布成交事件。
// fee 为券商回报的实付手续费，零值时按策略费率折算到本笔成交份额。
func (m *OrderManager) ProcessFill(ctx context.Context, orderID int64, fillQuantity, fillPrice, fee decimal.Decimal, feeCurrency string, utcTime time.Time) error {
	ord, err := m.repo.Get(ctx, orderID)
	if err != nil {
		return err
	}

	if fee.IsZero() {
		fee, feeCurrency = m.estimateFillFee(ctx, ord, fillQuantity)
	}
	if feeCurrency == "" {
		feeCurrency = ord.PriceCurrency
	}

	if err := ord.ApplyFill(fillQuantity, fillPrice, utcTime); err != nil {
		return fmt.Errorf("apply fill to order %d: %w", orderID, err)
	}

	err = m.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txCtx := db.WithTxContext(ctx, tx)
		if err := m.repo.Save(txCtx, ord); err != nil {
			return err
		}
		return m.publisher.Publish(txCtx, domain.EventTypeOrderFilled, ord.Symbol, domain.OrderFilledEvent{
			OrderID:      ord.ID,
			Symbol:       ord.Symbol,
			FillQuantity: fillQuantity,
			FillPrice:    fillPrice,
			Currency:     ord.PriceCurrency,
			Fee:          fee,
			FeeCurrency:  feeCurrency,
			Status:       ord.Status.String(),
			Time:         utcTime,
		})
	})
	if err != nil {
		return err
	}

	m.metrics.FillsApplied.Inc()
	if ord.Status.IsTerminal() {
		m.metrics.OrdersActive.Dec()
	}
	m.logger.InfoContext(ctx, "fill applied",
		"order_id", ord.ID, "fill_quantity", fillQuantity, "fill_price", fillPrice, "status", ord.Status.String())
	return nil
}

// estimateFillFee 按策略费模型估算手续费，并折算到本笔成交占整单的份额
func (m *OrderManager) estimateFillFee(ctx context.Context, ord *domain.Order, fillQuantity decimal.Decimal) (decimal.Decimal, string) {
	sec, err := m.securities.Get(ctx, ord.Symbol)
	if err != nil || ord.Quantity.IsZero() {
		return decimal.Zero, ord.PriceCurrency
	}
	orderFee, feeCurrency := m.brokerageModel.GetFeeModel(sec).GetOrderFee(sec, ord)
	share := fillQuantity.Abs().Div(ord.Quantity.Abs())
	return orderFee.Mul(share), feeCurrency
}

func rejected(orderID int64, code domain.OrderResponseErrorCode, message string) *domain.OrderTicket {
	return &domain.OrderTicket{Response: domain.ErrorResponse(orderID, code, message)}
}
