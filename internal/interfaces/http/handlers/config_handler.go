package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ngoclaw/ngoclaw/iafleet/internal/application/usecase"
	"github.com/ngoclaw/ngoclaw/iafleet/internal/domain/repository"
)

// ConfigHandler IA 配置接口
type ConfigHandler struct {
	fleet  *usecase.FleetService
	logger *zap.Logger
}

// NewConfigHandler 创建配置处理器
func NewConfigHandler(fleet *usecase.FleetService, logger *zap.Logger) *ConfigHandler {
	return &ConfigHandler{
		fleet:  fleet,
		logger: logger,
	}
}

// Get GET /ias/:id/config
func (h *ConfigHandler) Get(c *gin.Context) {
	iaID, ok := pathID(c, "id")
	if !ok {
		return
	}

	view, err := h.fleet.ConfigView(c.Request.Context(), iaID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, toConfigResponse(view))
}

// Put PUT /ias/:id/config 不存在时创建，创建与更新在同一事务内
func (h *ConfigHandler) Put(c *gin.Context) {
	iaID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req repository.ConfigPatch
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	if _, err := h.fleet.UpsertConfig(ctx, iaID, req, false); err != nil {
		respondError(c, h.logger, err)
		return
	}

	view, err := h.fleet.ConfigView(ctx, iaID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, toConfigResponse(view))
}
