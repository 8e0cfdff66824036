package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	agentsvc "github.com/lk2023060901/agentic-gateway/internal/agent/service"
	"github.com/lk2023060901/agentic-gateway/internal/auth"
	"github.com/lk2023060901/agentic-gateway/internal/auth/middleware"
	chatsvc "github.com/lk2023060901/agentic-gateway/internal/chat/service"
	"github.com/lk2023060901/agentic-gateway/internal/conf"
	"github.com/lk2023060901/agentic-gateway/internal/data"
	"github.com/lk2023060901/agentic-gateway/internal/pkg/logger"
	respsvc "github.com/lk2023060901/agentic-gateway/internal/responses/service"
	toolsvc "github.com/lk2023060901/agentic-gateway/internal/tools/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Services groups the route owners mounted on the HTTP server
type Services struct {
	Chat      *chatsvc.ChatService
	Responses *respsvc.ResponseService
	Tools     *toolsvc.ToolService
	Agent     *agentsvc.AgentService
}

type HTTPServer struct {
	server *http.Server
	logger *logger.Logger
}

func NewHTTPServer(
	config *conf.Config,
	log *logger.Logger,
	d *data.Data,
	jwtManager *auth.JWTManager,
	metrics *prometheus.Registry,
	services *Services,
) *HTTPServer {
	gin.SetMode(gin.ReleaseMode)

	router := NewRouter(config, log, d, jwtManager, metrics, services)
	addr := fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)

	return &HTTPServer{
		server: &http.Server{
			Addr:              addr,
			Handler:           router,
			ReadHeaderTimeout: config.Server.ReadTimeout,
			// 流式响应不设写超时
			WriteTimeout: 0,
		},
		logger: log,
	}
}

// NewRouter 构建 gin 路由
func NewRouter(
	config *conf.Config,
	log *logger.Logger,
	d *data.Data,
	jwtManager *auth.JWTManager,
	metrics *prometheus.Registry,
	services *Services,
) *gin.Engine {
	router := gin.New()
	router.Use(logger.GinLogger(log, logger.MiddlewareOptions{
		SkipPaths: []string{"/health", "/metrics"},
	}))
	router.Use(logger.GinRecovery(log))
	router.Use(cors.New(corsConfig(config.Server.CORSOrigins)))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics, promhttp.HandlerOpts{})))

	// 限流依赖 Redis
	limiterClient := d.Redis
	if !config.RateLimit.Enabled {
		limiterClient = nil
	}

	api := router.Group("")
	api.Use(middleware.JWTAuth(jwtManager, log))
	api.Use(middleware.RateLimiter(limiterClient, config.RateLimit, log))

	v1 := api.Group("/v1")
	services.Chat.RegisterRoutes(v1)
	services.Responses.RegisterRoutes(v1)

	services.Tools.RegisterRoutes(api)
	services.Agent.RegisterRoutes(api)

	return router
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	cfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"}
	cfg.ExposeHeaders = []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"}
	return cfg
}

func (s *HTTPServer) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

func (s *HTTPServer) Stop(ctx context.Context) error {
	s.logger.Info("stopping HTTP server")
	return s.server.Shutdown(ctx)
}
