package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	domainErrors "github.com/ngoclaw/ngoclaw/iafleet/pkg/errors"
)

// ErrorBody 错误响应体
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse 统一错误响应
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// StatusFor 将领域错误码映射为 HTTP 状态码
func StatusFor(err error) int {
	switch domainErrors.CodeOf(err) {
	case domainErrors.CodeNotFound:
		return http.StatusNotFound
	case domainErrors.CodeInvalidInput:
		return http.StatusBadRequest
	case domainErrors.CodeAlreadyExists, domainErrors.CodeConflict:
		return http.StatusConflict
	case domainErrors.CodeDecryption:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// respondError 写错误响应；5xx 不向客户端暴露内部细节
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	status := StatusFor(err)
	code := string(domainErrors.CodeOf(err))

	message := err.Error()
	var appErr *domainErrors.AppError
	if errors.As(err, &appErr) {
		message = appErr.Message
	}

	if status >= http.StatusInternalServerError {
		logger.Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.String("request_id", c.GetString(RequestIDKey)),
			zap.Error(err),
		)
		if code == "" {
			code = string(domainErrors.CodeInternal)
		}
		message = "internal server error"
	}

	c.AbortWithStatusJSON(status, ErrorResponse{Error: ErrorBody{Code: code, Message: message}})
}

// badRequest 请求体无法解析
func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: ErrorBody{
		Code:    string(domainErrors.CodeInvalidInput),
		Message: err.Error(),
	}})
}

// pathID 解析路径中的数字 ID
func pathID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		badRequest(c, errors.New(name+" must be a positive integer"))
		return 0, false
	}
	return uint(id), true
}

// RequestIDKey gin 上下文中保存请求 ID 的键
const RequestIDKey = "request_id"
