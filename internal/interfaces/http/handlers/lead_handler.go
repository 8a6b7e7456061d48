package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ngoclaw/ngoclaw/iafleet/internal/application/usecase"
	"github.com/ngoclaw/ngoclaw/iafleet/internal/domain/repository"
	"github.com/ngoclaw/ngoclaw/iafleet/internal/infrastructure/export"
	domainErrors "github.com/ngoclaw/ngoclaw/iafleet/pkg/errors"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// LeadHandler 线索接口
type LeadHandler struct {
	fleet  *usecase.FleetService
	logger *zap.Logger
}

// NewLeadHandler 创建线索处理器
func NewLeadHandler(fleet *usecase.FleetService, logger *zap.Logger) *LeadHandler {
	return &LeadHandler{
		fleet:  fleet,
		logger: logger,
	}
}

// CreateLeadRequest 创建线索请求，IA 取自路径
type CreateLeadRequest struct {
	Name    *string        `json:"name"`
	Phone   *string        `json:"phone"`
	Message map[string]any `json:"message"`
	Resume  *string        `json:"resume"`
}

// ListForIA GET /ias/:id/leads
func (h *LeadHandler) ListForIA(c *gin.Context) {
	iaID, ok := pathID(c, "id")
	if !ok {
		return
	}

	leads, err := h.fleet.ListLeadsForIA(c.Request.Context(), iaID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	resp := make([]LeadResponse, 0, len(leads))
	for _, l := range leads {
		resp = append(resp, toLeadResponse(l, ""))
	}
	c.JSON(http.StatusOK, resp)
}

// Create POST /ias/:id/leads
func (h *LeadHandler) Create(c *gin.Context) {
	iaID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req CreateLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	lead, err := h.fleet.CreateLead(c.Request.Context(), repository.CreateLeadInput{
		IAID:    iaID,
		Name:    req.Name,
		Phone:   req.Phone,
		Message: req.Message,
		Resume:  req.Resume,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, toLeadResponse(lead, ""))
}

// Export GET /ias/:id/leads/export 导出 xlsx
func (h *LeadHandler) Export(c *gin.Context) {
	iaID, ok := pathID(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	ia, err := h.fleet.GetIA(ctx, iaID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	leads, err := h.fleet.ListLeadsForIA(ctx, iaID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	// 先写入缓冲区，失败时仍可返回错误状态码
	var buf bytes.Buffer
	if err := export.WriteLeadsXLSX(&buf, ia.Name(), leads); err != nil {
		respondError(c, h.logger, domainErrors.NewInternalErrorWithCause("export leads", err))
		return
	}

	filename := export.LeadsFilename(iaID, time.Now())
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// Get GET /leads/:id
func (h *LeadHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	detail, err := h.fleet.GetLeadDetail(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, toLeadResponse(detail.Lead, detail.IAName))
}

// Update PATCH /leads/:id
func (h *LeadHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req repository.LeadPatch
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	lead, err := h.fleet.UpdateLead(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, toLeadResponse(lead, ""))
}

// Delete DELETE /leads/:id
func (h *LeadHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.fleet.DeleteLead(c.Request.Context(), id); err != nil && !domainErrors.IsNotFound(err) {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}
