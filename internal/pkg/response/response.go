package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
	apperrors "github.com/lk2023060901/agentic-gateway/internal/pkg/errors"
)

// ErrorBody 统一错误响应结构
type ErrorBody struct {
	Error  string `json:"error"`            // 错误摘要
	Detail string `json:"detail,omitempty"` // 详细原因
	Code   int    `json:"code,omitempty"`   // 业务错误码
}

// OK 成功响应（200），直接返回 OpenAI 风格的对象，不做外层包装
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// Created 创建资源成功（201）
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, data)
}

// BadRequest 400 错误
func BadRequest(c *gin.Context, detail string) {
	ErrorWithCode(c, apperrors.ErrInvalidParams, detail)
}

// HandleError 统一错误处理（使用 AppError）
func HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	code := apperrors.ExtractCode(err)
	_ = c.Error(err)
	c.JSON(apperrors.GetHTTPStatus(code), ErrorBody{
		Error:  apperrors.GetMessage(code),
		Detail: apperrors.GetDetails(err),
		Code:   code,
	})
}

// AbortWithError 中断请求链并返回错误（用于中间件）
func AbortWithError(c *gin.Context, err error) {
	HandleError(c, err)
	c.Abort()
}

// ErrorWithCode 使用错误码的错误响应
func ErrorWithCode(c *gin.Context, code int, detail string) {
	c.JSON(apperrors.GetHTTPStatus(code), ErrorBody{
		Error:  apperrors.GetMessage(code),
		Detail: detail,
		Code:   code,
	})
}
