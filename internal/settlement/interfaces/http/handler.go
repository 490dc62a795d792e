package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wyfcoding/tradingcore/internal/settlement/application"
	"github.com/wyfcoding/tradingcore/pkg/logger"
	"github.com/wyfcoding/tradingcore/pkg/response"
)

// SettlementHandler HTTP 处理器，暴露 relay 运维接口
type SettlementHandler struct {
	relay *application.RelayService
}

// NewSettlementHandler 创建 HTTP 处理器实例
func NewSettlementHandler(relay *application.RelayService) *SettlementHandler {
	return &SettlementHandler{relay: relay}
}

// RegisterRoutes 注册路由
func (h *SettlementHandler) RegisterRoutes(router *gin.RouterGroup) {
	api := router.Group("/api/v1/settlement")
	{
		api.GET("/outbox/stats", h.OutboxStats) // 积压查询
		api.POST("/outbox/relay", h.RelayNow)   // 手动触发搬运
	}
}

// OutboxStats 查询 outbox 积压
func (h *SettlementHandler) OutboxStats(c *gin.Context) {
	pending, err := h.relay.PendingCount(c.Request.Context())
	if err != nil {
		logger.Error(c.Request.Context(), "failed to count pending outbox messages", "error", err)
		response.ErrorWithStatus(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	response.Success(c, gin.H{"pending": pending})
}

// RelayNow 手动触发一轮搬运
func (h *SettlementHandler) RelayNow(c *gin.Context) {
	sent, err := h.relay.RelayOnce(c.Request.Context())
	if err != nil {
		logger.Error(c.Request.Context(), "manual relay failed", "sent", sent, "error", err)
		response.ErrorWithStatus(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	response.Success(c, gin.H{"sent": sent})
}
