package types

import (
	"errors"
	"strings"
	"time"
)

// DefaultTimeout 未配置时的首字节超时
const DefaultTimeout = 30 * time.Second

var (
	ErrMissingAPIKey  = errors.New("API key is required")
	ErrMissingBaseURL = errors.New("base URL is required")
)

// Config 单个上游 Provider 的连接配置
type Config struct {
	Name    string            // 注册表中的名称，也用于日志
	APIKey  string            // API Key
	BaseURL string            // API 基础 URL，不含末尾 "/"
	Timeout time.Duration     // 首字节超时（ResponseHeaderTimeout），不限制流的总时长
	Model   string            // 请求未指定模型时使用
	Headers map[string]string // 每个请求附加的 HTTP Headers
}

// Validate 校验并补全默认值
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return ErrMissingAPIKey
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.BaseURL == "" {
		return ErrMissingBaseURL
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	return nil
}
