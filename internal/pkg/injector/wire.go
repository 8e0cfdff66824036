//go:build wireinject
// +build wireinject

package injector

import (
	"github.com/google/wire"
	agentbiz "github.com/lk2023060901/agentic-gateway/internal/agent/biz"
	agentservice "github.com/lk2023060901/agentic-gateway/internal/agent/service"
	"github.com/lk2023060901/agentic-gateway/internal/ai/provider/registry"
	chatbiz "github.com/lk2023060901/agentic-gateway/internal/chat/biz"
	chatservice "github.com/lk2023060901/agentic-gateway/internal/chat/service"
	"github.com/lk2023060901/agentic-gateway/internal/conf"
	"github.com/lk2023060901/agentic-gateway/internal/pkg/logger"
	respbiz "github.com/lk2023060901/agentic-gateway/internal/responses/biz"
	respdata "github.com/lk2023060901/agentic-gateway/internal/responses/data"
	respservice "github.com/lk2023060901/agentic-gateway/internal/responses/service"
	"github.com/lk2023060901/agentic-gateway/internal/server"
	"github.com/lk2023060901/agentic-gateway/internal/tools"
	toolservice "github.com/lk2023060901/agentic-gateway/internal/tools/service"
)

// ProviderSet is the Wire provider set for all dependencies
var ProviderSet = wire.NewSet(
	// Data layer
	dataProviderSet,

	// LLM providers and completion
	chatProviderSet,

	// Conversation store
	responsesProviderSet,

	// Tools and agent
	agentProviderSet,

	// Servers
	serverProviderSet,
)

var dataProviderSet = wire.NewSet(
	provideData,
	provideMetricsRegistry,
)

var chatProviderSet = wire.NewSet(
	provideProviderRegistry,
	wire.Bind(new(chatbiz.ProviderResolver), new(*registry.Registry)),
	wire.Bind(new(agentservice.ProviderNamer), new(*registry.Registry)),
	provideTokenCounter,
	provideEnvelope,
	provideAdapter,
	chatbiz.NewRelay,
	provideCatalogue,
	chatservice.NewChatService,
)

var responsesProviderSet = wire.NewSet(
	provideResponseRepo,
	wire.Bind(new(respbiz.ResponseRepo), new(*respdata.ResponseRepo)),
	respbiz.NewResponseUseCase,
	respservice.NewResponseService,
)

var agentProviderSet = wire.NewSet(
	provideSearcher,
	provideGitHubClient,
	provideToolCache,
	provideToolPool,
	provideToolRegistry,
	toolservice.NewToolService,
	wire.Bind(new(agentbiz.Completer), new(*chatbiz.Adapter)),
	wire.Bind(new(agentbiz.ToolExecutor), new(*tools.Registry)),
	provideAgent,
	agentservice.NewAgentService,
)

var serverProviderSet = wire.NewSet(
	provideJWTManager,
	wire.Struct(new(server.Services), "*"),
	server.NewHTTPServer,
	server.NewGRPCServer,
)

// InitializeApp initializes the application with Wire
func InitializeApp(config *conf.Config, log *logger.Logger) (*App, func(), error) {
	wire.Build(ProviderSet, newApp)
	return nil, nil, nil
}
