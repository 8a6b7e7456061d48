package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ngoclaw/ngoclaw/iafleet/internal/application/usecase"
	"github.com/ngoclaw/ngoclaw/iafleet/internal/domain/repository"
	"github.com/ngoclaw/ngoclaw/iafleet/internal/infrastructure/markdown"
	domainErrors "github.com/ngoclaw/ngoclaw/iafleet/pkg/errors"
)

// PromptHandler 提示词接口
type PromptHandler struct {
	fleet  *usecase.FleetService
	logger *zap.Logger
}

// NewPromptHandler 创建提示词处理器
func NewPromptHandler(fleet *usecase.FleetService, logger *zap.Logger) *PromptHandler {
	return &PromptHandler{
		fleet:  fleet,
		logger: logger,
	}
}

// CreatePromptRequest 创建提示词请求，IA 取自路径
type CreatePromptRequest struct {
	Text   string `json:"text"`
	Active bool   `json:"is_active"`
}

// ListAll GET /prompts
func (h *PromptHandler) ListAll(c *gin.Context) {
	rows, err := h.fleet.ListPrompts(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	resp := make([]PromptResponse, 0, len(rows))
	for _, row := range rows {
		resp = append(resp, toPromptResponse(row.Prompt, row.IAName))
	}
	c.JSON(http.StatusOK, resp)
}

// ListForIA GET /ias/:id/prompts
func (h *PromptHandler) ListForIA(c *gin.Context) {
	iaID, ok := pathID(c, "id")
	if !ok {
		return
	}

	prompts, err := h.fleet.ListPromptsForIA(c.Request.Context(), iaID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	resp := make([]PromptResponse, 0, len(prompts))
	for _, p := range prompts {
		resp = append(resp, toPromptResponse(p, ""))
	}
	c.JSON(http.StatusOK, resp)
}

// Create POST /ias/:id/prompts
func (h *PromptHandler) Create(c *gin.Context) {
	iaID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req CreatePromptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	p, err := h.fleet.CreatePrompt(c.Request.Context(), repository.CreatePromptInput{
		IAID:   iaID,
		Text:   req.Text,
		Active: req.Active,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, toPromptResponse(p, ""))
}

// Update PATCH /prompts/:id
func (h *PromptHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req repository.PromptPatch
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	p, err := h.fleet.UpdatePrompt(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, toPromptResponse(p, ""))
}

// Delete DELETE /prompts/:id
func (h *PromptHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.fleet.DeletePrompt(c.Request.Context(), id); err != nil && !domainErrors.IsNotFound(err) {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Activate POST /ias/:id/prompts/:promptId/activate
func (h *PromptHandler) Activate(c *gin.Context) {
	iaID, ok := pathID(c, "id")
	if !ok {
		return
	}
	promptID, ok := pathID(c, "promptId")
	if !ok {
		return
	}

	p, err := h.fleet.SetActivePrompt(c.Request.Context(), iaID, promptID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, toPromptResponse(p, ""))
}

// Preview GET /prompts/:id/preview 返回渲染后的 HTML
func (h *PromptHandler) Preview(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	p, err := h.fleet.GetPrompt(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	html, err := markdown.ToHTML(p.Text())
	if err != nil {
		respondError(c, h.logger, domainErrors.NewInternalErrorWithCause("render prompt", err))
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
}
