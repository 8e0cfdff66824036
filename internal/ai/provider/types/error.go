package types

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType API 错误类型
type ErrorType string

const (
	// 4xx 客户端错误
	ErrorTypeInvalidRequest ErrorType = "invalid_request_error" // 400 - 请求格式或内容错误
	ErrorTypeAuthentication ErrorType = "authentication_error"  // 401 - API Key 问题
	ErrorTypePermission     ErrorType = "permission_error"      // 403 - API Key 权限不足
	ErrorTypeNotFound       ErrorType = "not_found_error"       // 404 - 模型或资源未找到
	ErrorTypeRateLimit      ErrorType = "rate_limit_error"      // 429 - 达到速率限制

	// 5xx 服务器错误
	ErrorTypeAPI        ErrorType = "api_error"        // 500 - 内部服务器错误
	ErrorTypeOverloaded ErrorType = "overloaded_error" // 529 - API 临时过载

	// 响应体无法解析或缺少必需字段
	ErrorTypeMalformed ErrorType = "malformed_response"
)

// ProviderError Provider 错误
type ProviderError struct {
	Type       ErrorType // 错误类型
	Provider   string    // Provider 名称
	StatusCode int       // HTTP 状态码
	Message    string    // 错误消息
	RequestID  string    // 请求 ID（用于追踪）
	Err        error     // 原始错误
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("[%s][%s] %s", e.Provider, e.Type, e.Message)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("[%s][%s][%d] %s", e.Provider, e.Type, e.StatusCode, e.Message)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.RequestID != "" {
		msg += " (request_id: " + e.RequestID + ")"
	}
	return msg
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// IsRetryable 判断错误是否可重试
func (e *ProviderError) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeRateLimit, ErrorTypeAPI, ErrorTypeOverloaded:
		return true
	default:
		return false
	}
}

// NewProviderError 创建 Provider 错误
func NewProviderError(provider, message string, err error) *ProviderError {
	return &ProviderError{
		Type:     ErrorTypeAPI,
		Provider: provider,
		Message:  message,
		Err:      err,
	}
}

// NewMalformedError 创建响应格式错误
func NewMalformedError(provider, message string) *ProviderError {
	return &ProviderError{
		Type:     ErrorTypeMalformed,
		Provider: provider,
		Message:  message,
	}
}

// NewHTTPError 根据上游 HTTP 状态码创建错误
func NewHTTPError(provider string, statusCode int, body string) *ProviderError {
	return &ProviderError{
		Type:       errorTypeForStatus(statusCode),
		Provider:   provider,
		StatusCode: statusCode,
		Message:    fmt.Sprintf("API error: %s", body),
	}
}

func errorTypeForStatus(code int) ErrorType {
	switch code {
	case http.StatusBadRequest:
		return ErrorTypeInvalidRequest
	case http.StatusUnauthorized:
		return ErrorTypeAuthentication
	case http.StatusForbidden:
		return ErrorTypePermission
	case http.StatusNotFound:
		return ErrorTypeNotFound
	case http.StatusTooManyRequests:
		return ErrorTypeRateLimit
	case 529:
		return ErrorTypeOverloaded
	default:
		return ErrorTypeAPI
	}
}

// 预定义错误
var (
	ErrModelNotRouted = errors.New("no provider configured for model")
	ErrEmptyResponse  = errors.New("response contains no choices")
)
