package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ngoclaw/ngoclaw/iafleet/internal/application/usecase"
	"github.com/ngoclaw/ngoclaw/iafleet/internal/domain/repository"
	domainErrors "github.com/ngoclaw/ngoclaw/iafleet/pkg/errors"
)

// IAHandler IA 管理接口
type IAHandler struct {
	fleet  *usecase.FleetService
	logger *zap.Logger
}

// NewIAHandler 创建 IA 处理器
func NewIAHandler(fleet *usecase.FleetService, logger *zap.Logger) *IAHandler {
	return &IAHandler{
		fleet:  fleet,
		logger: logger,
	}
}

// List GET /ias
func (h *IAHandler) List(c *gin.Context) {
	rows, err := h.fleet.Dashboard(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	resp := make([]IAResponse, 0, len(rows))
	for _, row := range rows {
		resp = append(resp, toIAResponse(row))
	}
	c.JSON(http.StatusOK, resp)
}

// Create POST /ias
func (h *IAHandler) Create(c *gin.Context) {
	var req repository.CreateIAInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	ia, err := h.fleet.CreateIA(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, toIAResponse(h.fleet.Summarize(ia)))
}

// Get GET /ias/:id
func (h *IAHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	row, err := h.fleet.IADetail(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, toIAResponse(*row))
}

// Update PATCH /ias/:id
func (h *IAHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req repository.IAPatch
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	ia, err := h.fleet.UpdateIA(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, toIAResponse(h.fleet.Summarize(ia)))
}

// Edit PUT /ias/:id/edit 同时更新 IA 与配置
func (h *IAHandler) Edit(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req usecase.EditIAInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	ia, err := h.fleet.EditIA(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, toIAResponse(h.fleet.Summarize(ia)))
}

// Delete DELETE /ias/:id，不存在的 ID 视为已删除
func (h *IAHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.fleet.DeleteIA(c.Request.Context(), id); err != nil && !domainErrors.IsNotFound(err) {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}
