package biz

import (
	"time"

	ptypes "github.com/lk2023060901/agentic-gateway/internal/ai/provider/types"
)

// CatalogueEntry 模型目录配置项
type CatalogueEntry struct {
	ID      string `mapstructure:"id"`
	OwnedBy string `mapstructure:"owned_by"`
}

// DefaultCatalogue 未配置时对外公布的模型
var DefaultCatalogue = []CatalogueEntry{
	{ID: "gpt-4o", OwnedBy: "openai"},
	{ID: "gpt-4o-mini", OwnedBy: "openai"},
	{ID: "claude-3-5-sonnet-20241022", OwnedBy: "anthropic"},
	{ID: "claude-3-haiku-20240307", OwnedBy: "anthropic"},
}

// NewCatalogue 生成 /v1/models 返回的模型列表
func NewCatalogue(entries []CatalogueEntry, created time.Time) []ptypes.Model {
	if len(entries) == 0 {
		entries = DefaultCatalogue
	}
	models := make([]ptypes.Model, 0, len(entries))
	for _, e := range entries {
		models = append(models, ptypes.Model{
			ID:      e.ID,
			Object:  "model",
			Created: created.Unix(),
			OwnedBy: e.OwnedBy,
		})
	}
	return models
}
