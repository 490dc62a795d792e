package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/wyfcoding/tradingcore/internal/order/application"
	"github.com/wyfcoding/tradingcore/internal/order/domain"
	"github.com/wyfcoding/tradingcore/pkg/logger"
	"github.com/wyfcoding/tradingcore/pkg/response"
)

// OrderHandler HTTP 处理器
// 负责处理与订单相关的 HTTP 请求
type OrderHandler struct {
	manager *application.OrderManager
	query   *application.OrderQueryService
}

// NewOrderHandler 创建 HTTP 处理器实例
func NewOrderHandler(manager *application.OrderManager, query *application.OrderQueryService) *OrderHandler {
	return &OrderHandler{manager: manager, query: query}
}

// RegisterRoutes 注册路由
func (h *OrderHandler) RegisterRoutes(router *gin.RouterGroup) {
	api := router.Group("/api/v1/orders")
	{
		api.POST("", h.SubmitOrder)         // 提交订单
		api.PUT("/:id", h.UpdateOrder)      // 改单
		api.DELETE("/:id", h.CancelOrder)   // 撤单
		api.GET("/:id", h.GetOrder)         // 获取订单详情
		api.GET("", h.ListOrders)           // 按证券分页查询
		api.GET("/open", h.ListOpenOrders)  // 全部在途订单
		api.POST("/:id/fills", h.ApplyFill) // 成交回报
	}
}

// SubmitOrderRequest 提交订单请求
type SubmitOrderRequest struct {
	Symbol       string `json:"symbol" binding:"required"`
	Type         string `json:"type" binding:"required"`
	Quantity     string `json:"quantity" binding:"required"`
	LimitPrice   string `json:"limit_price"`
	StopPrice    string `json:"stop_price"`
	TriggerPrice string `json:"trigger_price"`
	TimeInForce  string `json:"time_in_force"`
	TIFExpiry    int64  `json:"time_in_force_expiry"`
	Tag          string `json:"tag"`
}

// SubmitOrder 提交订单
func (h *OrderHandler) SubmitOrder(c *gin.Context) {
	var req SubmitOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), nil)
		return
	}

	orderType, err := domain.ParseOrderType(req.Type)
	if err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), nil)
		return
	}

	quantity, err := decimal.NewFromString(req.Quantity)
	if err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid quantity", nil)
		return
	}

	submit := &domain.SubmitOrderRequest{
		Type:     orderType,
		Symbol:   req.Symbol,
		Quantity: quantity,
		Time:     time.Now().UTC(),
		Tag:      req.Tag,
	}
	if submit.LimitPrice, err = optionalDecimal(req.LimitPrice); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid limit_price", nil)
		return
	}
	if submit.StopPrice, err = optionalDecimal(req.StopPrice); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid stop_price", nil)
		return
	}
	if submit.TriggerPrice, err = optionalDecimal(req.TriggerPrice); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid trigger_price", nil)
		return
	}
	if req.TimeInForce != "" {
		submit.Properties = &domain.OrderProperties{
			TimeInForce: domain.DecodeTimeInForce(req.TimeInForce, req.TIFExpiry),
		}
	}

	ticket, err := h.manager.Submit(c.Request.Context(), submit)
	if err != nil {
		logger.Error(c.Request.Context(), "failed to submit order", "error", err)
		response.ErrorWithStatus(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}

	writeTicket(c, ticket)
}

// UpdateOrderRequest 改单请求，缺省字段保持原值
type UpdateOrderRequest struct {
	Quantity   *string `json:"quantity"`
	Tag        *string `json:"tag"`
	LimitPrice *string `json:"limit_price"`
	StopPrice  *string `json:"stop_price"`
}

// UpdateOrder 改单
func (h *OrderHandler) UpdateOrder(c *gin.Context) {
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}

	var req UpdateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), nil)
		return
	}

	update := &domain.UpdateOrderRequest{OrderID: orderID, Time: time.Now().UTC()}
	var err error
	if update.Quantity, err = optionalDecimalPtr(req.Quantity); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid quantity", nil)
		return
	}
	if update.LimitPrice, err = optionalDecimalPtr(req.LimitPrice); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid limit_price", nil)
		return
	}
	if update.StopPrice, err = optionalDecimalPtr(req.StopPrice); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid stop_price", nil)
		return
	}
	update.Tag = req.Tag

	ticket, err := h.manager.Update(c.Request.Context(), update)
	if err != nil {
		logger.Error(c.Request.Context(), "failed to update order", "order_id", orderID, "error", err)
		response.ErrorWithStatus(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}

	writeTicket(c, ticket)
}

// CancelOrderRequest 撤单请求
type CancelOrderRequest struct {
	Tag string `json:"tag"`
}

// CancelOrder 撤单
func (h *OrderHandler) CancelOrder(c *gin.Context) {
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}

	var req CancelOrderRequest
	_ = c.ShouldBindJSON(&req)

	ticket, err := h.manager.Cancel(c.Request.Context(), &domain.CancelOrderRequest{
		OrderID: orderID,
		Tag:     req.Tag,
		Time:    time.Now().UTC(),
	})
	if err != nil {
		logger.Error(c.Request.Context(), "failed to cancel order", "order_id", orderID, "error", err)
		response.ErrorWithStatus(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}

	writeTicket(c, ticket)
}

// ApplyFillRequest 成交回报，手续费缺省时按策略费率折算
type ApplyFillRequest struct {
	FillQuantity string `json:"fill_quantity" binding:"required"`
	FillPrice    string `json:"fill_price" binding:"required"`
	Fee          string `json:"fee"`
	FeeCurrency  string `json:"fee_currency"`
}

// ApplyFill 应用一笔成交回报
func (h *OrderHandler) ApplyFill(c *gin.Context) {
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}

	var req ApplyFillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), nil)
		return
	}

	quantity, err := decimal.NewFromString(req.FillQuantity)
	if err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid fill_quantity", nil)
		return
	}
	price, err := decimal.NewFromString(req.FillPrice)
	if err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid fill_price", nil)
		return
	}
	fee := decimal.Zero
	if req.Fee != "" {
		if fee, err = decimal.NewFromString(req.Fee); err != nil {
			response.ErrorWithStatus(c, http.StatusBadRequest, "invalid fee", nil)
			return
		}
	}

	if err := h.manager.ProcessFill(c.Request.Context(), orderID, quantity, price, fee, req.FeeCurrency, time.Now().UTC()); err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			response.ErrorWithStatus(c, http.StatusNotFound, "order not found", nil)
			return
		}
		logger.Error(c.Request.Context(), "failed to apply fill", "order_id", orderID, "error", err)
		response.ErrorWithStatus(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}

	response.Success(c, gin.H{"order_id": orderID})
}

// GetOrder 获取订单详情
func (h *OrderHandler) GetOrder(c *gin.Context) {
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}

	order, err := h.query.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			response.ErrorWithStatus(c, http.StatusNotFound, "order not found", nil)
			return
		}
		logger.Error(c.Request.Context(), "failed to get order", "order_id", orderID, "error", err)
		response.ErrorWithStatus(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}

	response.Success(c, order.Serialize())
}

// ListOrders 按证券分页查询订单
func (h *OrderHandler) ListOrders(c *gin.Context) {
	symbol := c.Query("symbol")
	if symbol == "" {
		response.ErrorWithStatus(c, http.StatusBadRequest, "symbol is required", nil)
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	orders, total, err := h.query.ListOrders(c.Request.Context(), symbol, limit, offset)
	if err != nil {
		logger.Error(c.Request.Context(), "failed to list orders", "symbol", symbol, "error", err)
		response.ErrorWithStatus(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}

	response.Success(c, gin.H{"total": total, "orders": serializeAll(orders)})
}

// ListOpenOrders 查询全部在途订单
func (h *OrderHandler) ListOpenOrders(c *gin.Context) {
	orders, err := h.query.ListOpenOrders(c.Request.Context())
	if err != nil {
		logger.Error(c.Request.Context(), "failed to list open orders", "error", err)
		response.ErrorWithStatus(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	response.Success(c, gin.H{"orders": serializeAll(orders)})
}

func orderIDParam(c *gin.Context) (int64, bool) {
	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid order id", nil)
		return 0, false
	}
	return orderID, true
}

// writeTicket 业务拒绝走统一响应的业务错误码，HTTP 层仍为 200
func writeTicket(c *gin.Context, ticket *domain.OrderTicket) {
	if !ticket.Response.IsSuccess() {
		response.Error(c, int(ticket.Response.ErrorCode), ticket.Response.ErrorMessage)
		return
	}
	response.Success(c, gin.H{"order": ticket.Order.Serialize(), "response": ticket.Response})
}

func serializeAll(orders []*domain.Order) []*domain.SerializedOrder {
	out := make([]*domain.SerializedOrder, 0, len(orders))
	for _, ord := range orders {
		out = append(out, ord.Serialize())
	}
	return out
}

func optionalDecimal(value string) (decimal.Decimal, error) {
	if value == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(value)
}

func optionalDecimalPtr(value *string) (*decimal.Decimal, error) {
	if value == nil {
		return nil, nil
	}
	d, err := decimal.NewFromString(*value)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
