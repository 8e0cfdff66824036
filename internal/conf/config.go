package conf

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	agentbiz "github.com/lk2023060901/agentic-gateway/internal/agent/biz"
	"github.com/lk2023060901/agentic-gateway/internal/ai/provider/factory"
	"github.com/lk2023060901/agentic-gateway/internal/auth"
	"github.com/lk2023060901/agentic-gateway/internal/auth/middleware"
	chatbiz "github.com/lk2023060901/agentic-gateway/internal/chat/biz"
	"github.com/lk2023060901/agentic-gateway/internal/github"
	"github.com/lk2023060901/agentic-gateway/internal/pkg/database"
	"github.com/lk2023060901/agentic-gateway/internal/pkg/logger"
	"github.com/lk2023060901/agentic-gateway/internal/pkg/redis"
	"github.com/lk2023060901/agentic-gateway/internal/pkg/workerpool"
	wstypes "github.com/lk2023060901/agentic-gateway/internal/websearch/types"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  database.Config `mapstructure:"database"`
	Redis     redis.Config    `mapstructure:"redis"`
	Log       logger.Config   `mapstructure:"log"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Chat      ChatConfig      `mapstructure:"chat"`
	Tools     ToolsConfig     `mapstructure:"tools"`
	Agent     agentbiz.Config              `mapstructure:"agent"`
	Auth      auth.Config                  `mapstructure:"auth"`
	RateLimit middleware.RateLimiterConfig `mapstructure:"ratelimit"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	GRPCPort        int           `mapstructure:"grpc_port"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LLMConfig struct {
	DefaultModel   string                   `mapstructure:"default_model"`
	FallbackModels []string                 `mapstructure:"fallback_models"`
	AttemptTimeout time.Duration            `mapstructure:"attempt_timeout"`
	Providers      []ProviderConfig         `mapstructure:"providers"`
	Aliases        map[string]string        `mapstructure:"aliases"`
	Catalogue      []chatbiz.CatalogueEntry `mapstructure:"catalogue"`
}

type ProviderConfig struct {
	Name     string            `mapstructure:"name"`
	Type     string            `mapstructure:"type"` // openai, anthropic
	APIKey   string            `mapstructure:"api_key"`
	BaseURL  string            `mapstructure:"base_url"`
	Timeout  time.Duration     `mapstructure:"timeout"`
	Model    string            `mapstructure:"model"`
	Headers  map[string]string `mapstructure:"headers"`
	Models   []string          `mapstructure:"models"`
	Prefixes []string          `mapstructure:"prefixes"`
}

type ChatConfig struct {
	UsageEstimator string `mapstructure:"usage_estimator"` // whitespace, tiktoken
}

type ToolsConfig struct {
	Tavily   wstypes.ProviderConfig `mapstructure:"tavily"`
	GitHub   github.Config          `mapstructure:"github"`
	CacheTTL time.Duration          `mapstructure:"cache_ttl"`
	Pool     workerpool.Config      `mapstructure:"pool"`
}

// envBindings 环境变量到配置项的映射
var envBindings = map[string]string{
	"tools.tavily.api_key": "TAVILY_API_KEY",
	"tools.github.token":   "GITHUB_TOKEN",
	"database.driver":      "DATABASE_DRIVER",
	"database.url":         "DATABASE_DSN",
	"redis.master_addr":    "REDIS_ADDR",
	"auth.jwt_secret":      "JWT_SECRET",
	"server.port":          "PORT",
	"log.level":            "LOG_LEVEL",
}

// providerKeyEnv 各类型 Provider 的 API Key 环境变量
var providerKeyEnv = map[string]string{
	factory.KindOpenAI:    "OPENAI_API_KEY",
	factory.KindAnthropic: "ANTHROPIC_API_KEY",
}

// LoadConfig 读取 .env、配置文件与环境变量
// 配置文件不存在时使用默认值
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind env %s: %w", env, err)
		}
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to stat config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyProviderKeys(&config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.grpc_port", 9000)
	v.SetDefault("server.cors_origins", []string{"http://localhost:3000", "http://127.0.0.1:3000"})
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 5*time.Second)

	db := database.DefaultConfig()
	v.SetDefault("database.driver", db.Driver)
	v.SetDefault("database.host", db.Host)
	v.SetDefault("database.port", db.Port)
	v.SetDefault("database.user", db.User)
	v.SetDefault("database.password", db.Password)
	v.SetDefault("database.dbname", db.DBName)
	v.SetDefault("database.sslmode", db.SSLMode)
	v.SetDefault("database.path", db.Path)
	v.SetDefault("database.maxidleconns", db.MaxIdleConns)
	v.SetDefault("database.maxopenconns", db.MaxOpenConns)
	v.SetDefault("database.connmaxlifetime", db.ConnMaxLifetime)
	v.SetDefault("database.connmaxidletime", db.ConnMaxIdleTime)
	v.SetDefault("database.loglevel", db.LogLevel)
	v.SetDefault("database.slowthreshold", db.SlowThreshold)
	v.SetDefault("database.preparestmt", db.PrepareStmt)
	v.SetDefault("database.timezone", db.Timezone)
	v.SetDefault("database.automigrate", db.AutoMigrate)

	rd := redis.DefaultConfig()
	v.SetDefault("redis.enabled", rd.Enabled)
	v.SetDefault("redis.mode", rd.Mode)
	v.SetDefault("redis.master_addr", rd.MasterAddr)
	v.SetDefault("redis.db", rd.DB)
	v.SetDefault("redis.pool_size", rd.PoolSize)
	v.SetDefault("redis.min_idle_conns", rd.MinIdleConns)
	v.SetDefault("redis.dial_timeout", rd.DialTimeout)
	v.SetDefault("redis.read_timeout", rd.ReadTimeout)
	v.SetDefault("redis.write_timeout", rd.WriteTimeout)
	v.SetDefault("redis.max_retries", rd.MaxRetries)
	v.SetDefault("redis.key_prefix", rd.KeyPrefix)

	lg := logger.DefaultConfig()
	v.SetDefault("log.level", lg.Level)
	v.SetDefault("log.format", lg.Format)
	v.SetDefault("log.output", lg.Output)
	v.SetDefault("log.enablecaller", lg.EnableCaller)
	v.SetDefault("log.enablestacktrace", lg.EnableStacktrace)
	v.SetDefault("log.file.filename", lg.File.Filename)
	v.SetDefault("log.file.maxsize", lg.File.MaxSize)
	v.SetDefault("log.file.maxage", lg.File.MaxAge)
	v.SetDefault("log.file.maxbackups", lg.File.MaxBackups)
	v.SetDefault("log.file.compress", lg.File.Compress)

	v.SetDefault("llm.default_model", "gpt-4o")
	v.SetDefault("llm.fallback_models", chatbiz.DefaultFallbackModels)
	v.SetDefault("llm.attempt_timeout", 60*time.Second)
	v.SetDefault("llm.providers", []map[string]interface{}{
		{"name": factory.KindOpenAI, "type": factory.KindOpenAI},
		{"name": factory.KindAnthropic, "type": factory.KindAnthropic},
	})

	v.SetDefault("chat.usage_estimator", chatbiz.EstimatorWhitespace)

	v.SetDefault("tools.tavily.id", wstypes.ProviderTavily)
	v.SetDefault("tools.tavily.name", "Tavily")
	v.SetDefault("tools.tavily.api_host", wstypes.DefaultTavilyHost)
	v.SetDefault("tools.tavily.timeout", 30)
	v.SetDefault("tools.tavily.max_retries", 3)
	v.SetDefault("tools.github.api_host", github.DefaultAPIHost)
	v.SetDefault("tools.github.timeout", 30)
	v.SetDefault("tools.cache_ttl", 10*time.Minute)
	pool := workerpool.DefaultConfig()
	v.SetDefault("tools.pool.size", pool.Size)
	v.SetDefault("tools.pool.expiry_duration", pool.ExpiryDuration)
	v.SetDefault("tools.pool.nonblocking", pool.Nonblocking)

	v.SetDefault("agent.max_iterations", agentbiz.DefaultMaxIterations)

	v.SetDefault("auth.jwt_issuer", auth.DefaultIssuer)
	v.SetDefault("auth.token_ttl", auth.DefaultTokenTTL)

	v.SetDefault("ratelimit.enabled", false)
	v.SetDefault("ratelimit.max_requests", 100)
	v.SetDefault("ratelimit.window_seconds", 60)
	v.SetDefault("ratelimit.strategy", "ip")
}

// applyProviderKeys 配置中未填写 api_key 的 Provider 使用对应的环境变量
func applyProviderKeys(config *Config) {
	for i := range config.LLM.Providers {
		p := &config.LLM.Providers[i]
		if p.APIKey != "" {
			continue
		}
		if env, ok := providerKeyEnv[p.Type]; ok {
			p.APIKey = os.Getenv(env)
		}
	}
}

// Validate 校验配置
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Server.GRPCPort < 0 || c.Server.GRPCPort > 65535 {
		return fmt.Errorf("invalid grpc port %d", c.Server.GRPCPort)
	}
	for _, p := range c.LLM.Providers {
		if _, ok := providerKeyEnv[p.Type]; !ok {
			return fmt.Errorf("llm provider %q: unsupported type %q", p.Name, p.Type)
		}
	}
	if c.Tools.Pool.Size <= 0 {
		return errors.New("tools.pool.size must be > 0")
	}
	if c.Agent.MaxIterations < 0 {
		return errors.New("agent.max_iterations must be >= 0")
	}
	if err := c.Database.Validate(); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if c.Redis.Enabled {
		if err := c.Redis.Validate(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return c.Log.Validate()
}

// ProviderParams 转换为 Provider 构建参数
func (c *LLMConfig) ProviderParams() []factory.Params {
	params := make([]factory.Params, 0, len(c.Providers))
	for _, p := range c.Providers {
		params = append(params, factory.Params{
			Name:     p.Name,
			Kind:     p.Type,
			APIKey:   p.APIKey,
			BaseURL:  p.BaseURL,
			Timeout:  p.Timeout,
			Model:    p.Model,
			Headers:  p.Headers,
			Models:   p.Models,
			Prefixes: p.Prefixes,
		})
	}
	return params
}
