package biz

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

const (
	EstimatorWhitespace = "whitespace"
	EstimatorTiktoken   = "tiktoken"

	defaultEncoding = "cl100k_base"
)

// TokenCounter 本地 Token 计数器
// 仅在上游未返回 usage 时用于估算，结果是近似值
type TokenCounter interface {
	Count(text string) int
}

// WhitespaceCounter 按空白分词计数
type WhitespaceCounter struct{}

// Count 返回空白分隔的词数
func (WhitespaceCounter) Count(text string) int {
	return len(strings.Fields(text))
}

// TiktokenCounter 使用 BPE 编码计数
type TiktokenCounter struct {
	encoding *tiktoken.Tiktoken
}

// NewTiktokenCounter 创建 tiktoken 计数器，encoding 为空时使用 cl100k_base
func NewTiktokenCounter(encoding string) (*TiktokenCounter, error) {
	if encoding == "" {
		encoding = defaultEncoding
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to load tiktoken encoding %s: %w", encoding, err)
	}
	return &TiktokenCounter{encoding: enc}, nil
}

// Count 返回 BPE Token 数
func (c *TiktokenCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(c.encoding.Encode(text, nil, nil))
}

// NewTokenCounter 按配置名称创建计数器，空值使用 whitespace
func NewTokenCounter(kind string) (TokenCounter, error) {
	switch kind {
	case "", EstimatorWhitespace:
		return WhitespaceCounter{}, nil
	case EstimatorTiktoken:
		return NewTiktokenCounter(defaultEncoding)
	default:
		return nil, fmt.Errorf("unknown usage estimator %q", kind)
	}
}
