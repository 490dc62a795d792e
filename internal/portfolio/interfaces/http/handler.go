package http

import (
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/dtm-labs/client/dtmcli"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/wyfcoding/tradingcore/internal/portfolio/application"
	"github.com/wyfcoding/tradingcore/internal/portfolio/infrastructure/persistence/mysql"
	"github.com/wyfcoding/tradingcore/pkg/logger"
	"github.com/wyfcoding/tradingcore/pkg/response"
)

// PortfolioHandler HTTP 处理器
// 负责组合查询与 Saga 资金冻结分支
type PortfolioHandler struct {
	service *application.PortfolioService
}

// NewPortfolioHandler 创建 HTTP 处理器实例
func NewPortfolioHandler(service *application.PortfolioService) *PortfolioHandler {
	return &PortfolioHandler{service: service}
}

// RegisterRoutes 注册路由
func (h *PortfolioHandler) RegisterRoutes(router *gin.RouterGroup) {
	api := router.Group("/api/v1/portfolio")
	{
		api.GET("/balances", h.GetBalances)          // 现金余额（含在途）
		api.GET("/holdings", h.ListHoldings)         // 全部持仓
		api.GET("/holdings/:symbol", h.GetHolding)   // 单只持仓
		api.GET("/value", h.GetTotalValue)           // 组合总值
		api.POST("/funds/reserve", h.ReserveFunds)   // Saga 正向分支
		api.POST("/funds/release", h.ReleaseFunds)   // Saga 补偿分支
		api.POST("/settlement/scan", h.TriggerScan)  // 手动触发结算扫描
	}
}

// GetBalances 查询现金余额
func (h *PortfolioHandler) GetBalances(c *gin.Context) {
	manager := h.service.Manager()
	response.Success(c, gin.H{
		"base_currency":   manager.CashBook().BaseCurrency(),
		"settled":         manager.CashBook().Snapshot(),
		"unsettled":       manager.UnsettledCashBook().Snapshot(),
		"settled_value":   manager.CashBook().TotalValueInBaseCurrency(),
		"unsettled_value": manager.UnsettledCashBook().TotalValueInBaseCurrency(),
	})
}

// ListHoldings 查询全部持仓
func (h *PortfolioHandler) ListHoldings(c *gin.Context) {
	response.Success(c, gin.H{"holdings": h.service.Manager().Holdings()})
}

// GetHolding 查询单只持仓，无持仓返回数量 0
func (h *PortfolioHandler) GetHolding(c *gin.Context) {
	symbol := c.Param("symbol")
	quantity := h.service.Manager().HoldingQuantity(symbol)
	response.Success(c, gin.H{"symbol": symbol, "quantity": quantity.String()})
}

// GetTotalValue 查询组合总值（本位币）
func (h *PortfolioHandler) GetTotalValue(c *gin.Context) {
	value := h.service.Manager().TotalPortfolioValue(c.Request.Context())
	response.Success(c, gin.H{"total_value": value.String()})
}

// ReserveFundsRequest Saga 分支请求体
type ReserveFundsRequest struct {
	OrderID     int64  `json:"order_id" binding:"required"`
	Symbol      string `json:"symbol"`
	Currency    string `json:"currency" binding:"required"`
	Amount      string `json:"amount" binding:"required"`
	Fee         string `json:"fee"`
	FeeCurrency string `json:"fee_currency"`
}

// ReserveFunds Saga 正向分支：冻结下单所需资金。
// 余额不足返回 409，DTM 据此触发回滚而非重试。
func (h *PortfolioHandler) ReserveFunds(c *gin.Context) {
	var req ReserveFundsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), nil)
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || amount.IsNegative() {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid amount", nil)
		return
	}

	barrier, err := dtmcli.BarrierFromQuery(c.Request.URL.Query())
	if err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), nil)
		return
	}

	manager := h.service.Manager()
	err = barrier.CallWithDB(h.service.SQLDB(), func(tx *sql.Tx) error {
		cash, err := manager.CashBook().Get(req.Currency)
		if err == nil && cash.Quantity.LessThan(amount) {
			return dtmcli.ErrFailure
		}
		if err := h.service.Reservations().Reserve(tx, mysql.Reservation{
			OrderID:     req.OrderID,
			Currency:    req.Currency,
			Amount:      req.Amount,
			Fee:         req.Fee,
			FeeCurrency: req.FeeCurrency,
		}); err != nil {
			return err
		}
		manager.ApplySettledCash(req.Currency, amount.Neg())
		return nil
	})
	if err != nil {
		if errors.Is(err, dtmcli.ErrFailure) {
			logger.Warn(c.Request.Context(), "funds reservation refused",
				"order_id", req.OrderID, "currency", req.Currency, "amount", req.Amount)
			c.JSON(http.StatusConflict, gin.H{"dtm_result": "FAILURE", "message": "insufficient funds"})
			return
		}
		logger.Error(c.Request.Context(), "funds reservation failed", "order_id", req.OrderID, "error", err)
		response.ErrorWithStatus(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}

	logger.Info(c.Request.Context(), "funds reserved",
		"order_id", req.OrderID, "currency", req.Currency, "amount", req.Amount)
	response.Success(c, gin.H{"order_id": req.OrderID})
}

// ReleaseFunds Saga 补偿分支：解除冻结。
// 空补偿与重复补偿由子事务屏障和台账状态共同保证幂等。
func (h *PortfolioHandler) ReleaseFunds(c *gin.Context) {
	var req ReserveFundsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), nil)
		return
	}

	barrier, err := dtmcli.BarrierFromQuery(c.Request.URL.Query())
	if err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), nil)
		return
	}

	manager := h.service.Manager()
	err = barrier.CallWithDB(h.service.SQLDB(), func(tx *sql.Tx) error {
		reservation, released, err := h.service.Reservations().Release(tx, req.OrderID)
		if err != nil {
			return err
		}
		if !released {
			return nil
		}
		amount, err := decimal.NewFromString(reservation.Amount)
		if err != nil {
			return err
		}
		manager.ApplySettledCash(reservation.Currency, amount)
		return nil
	})
	if err != nil {
		logger.Error(c.Request.Context(), "funds release failed", "order_id", req.OrderID, "error", err)
		response.ErrorWithStatus(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}

	logger.Info(c.Request.Context(), "funds released", "order_id", req.OrderID)
	response.Success(c, gin.H{"order_id": req.OrderID})
}

// TriggerScan 手动触发一轮结算扫描，运维调试用
func (h *PortfolioHandler) TriggerScan(c *gin.Context) {
	if err := h.service.ScanOnce(c.Request.Context(), time.Now().UTC()); err != nil {
		logger.Error(c.Request.Context(), "manual settlement scan failed", "error", err)
		response.ErrorWithStatus(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	response.Success(c, gin.H{"status": "scanned"})
}
