// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package api 组装网关进程：HTTP 入口、WebSocket 网关、relay 订阅与任务分发
package api

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	hertzslog "github.com/hertz-contrib/logger/slog"
	"github.com/hertz-contrib/obs-opentelemetry/provider"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"
	"github.com/redis/go-redis/v9"

	apihttp "synapse-platform/internal/api/http"
	"synapse-platform/internal/conversation"
	"synapse-platform/internal/gateway"
	"synapse-platform/internal/job"
	"synapse-platform/internal/model/llm"
	"synapse-platform/internal/queue"
	"synapse-platform/internal/relay"
	"synapse-platform/internal/storage/history"
	"synapse-platform/internal/storage/redisx"
	"synapse-platform/internal/tool"
	"synapse-platform/pkg/config"
	"synapse-platform/pkg/log"
	"synapse-platform/pkg/secrets"
)

// otelProviderShutdown 用于优雅关闭时关闭 OpenTelemetry provider
type otelProviderShutdown interface {
	Shutdown(ctx context.Context) error
}

// App API（网关）应用
type App struct {
	cfg    *config.Config
	logger *log.Logger

	router *apihttp.Router
	hertz  *server.Hertz

	subscriber *relay.Subscriber
	subCancel  context.CancelFunc

	redis *redis.Client
	jobs  job.Store
	convs conversation.Store
	queue queue.Queue

	otelProvider otelProviderShutdown
}

// NewApp 按配置组装 API 应用；memory 后端用于单进程部署，redis/postgres 用于分布式
func NewApp(cfg *config.Config) (*App, error) {
	logger, err := log.NewLogger(&log.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   cfg.Log.File,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}

	a := &App{cfg: cfg, logger: logger}

	// Redis 客户端在 queue / history 任一使用 redis 时创建，relay 随之走 Redis Pub/Sub
	if cfg.Queue.Type == "redis" || cfg.History.Type == "redis" {
		client, err := redisx.NewClient(cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("连接 Redis 失败: %w", err)
		}
		a.redis = client
	}

	ctx := context.Background()
	if cfg.JobStore.Type == "postgres" {
		jobs, err := job.NewPgStore(ctx, cfg.JobStore.DSN)
		if err != nil {
			return nil, fmt.Errorf("初始化 Job 存储失败: %w", err)
		}
		a.jobs = jobs
		convs, err := conversation.NewPgStore(ctx, cfg.JobStore.DSN)
		if err != nil {
			return nil, fmt.Errorf("初始化会话存储失败: %w", err)
		}
		a.convs = convs
	} else {
		a.jobs = job.NewMemoryStore()
		a.convs = conversation.NewMemoryStore()
	}

	if cfg.Queue.Type == "redis" {
		a.queue = queue.NewRedisQueue(a.redis)
	} else {
		a.queue = queue.NewMemoryQueue()
	}

	var cache history.Cache
	if cfg.History.Type == "redis" {
		cache = history.NewRedisCache(a.redis, cfg.History.WindowSize, logger)
	} else {
		cache = history.NewMemoryCache(cfg.History.WindowSize)
	}

	dispatcher := job.NewDispatcher(a.jobs, a.queue, logger)
	registry := gateway.NewRegistry(logger)
	ws := gateway.NewWSHandler(registry, dispatcher, logger)

	var publisher relay.Publisher
	var source relay.Source
	if a.redis != nil {
		publisher = relay.NewRedisPublisher(a.redis)
		source = relay.NewRedisSource(a.redis)
	} else {
		broker := relay.NewMemoryBroker()
		publisher = broker
		source = broker
	}
	a.subscriber = relay.NewSubscriber(source, registry, logger)

	secretStore, err := secrets.NewStore(secrets.Config{
		Provider: cfg.Secrets.Provider,
		Config:   cfg.Secrets.Config,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化 Secret Store 失败: %w", err)
	}
	selector := llm.NewSelector(cfg.Model.LLM, secretStore,
		llm.NewRateLimiter(nil, llm.LimitConfig{}), logger)

	orchestrator := buildOrchestrator(cfg.Tools, logger)

	svc := conversation.NewService(a.convs, cache, dispatcher, selector, orchestrator, publisher, logger)
	handler := apihttp.NewHandler(dispatcher, a.jobs, svc)
	a.router = apihttp.NewRouter(handler, ws)

	return a, nil
}

// buildOrchestrator 按配置组装工具编排器（API 与 Worker 共用同一套配置）
func buildOrchestrator(cfg config.ToolsConfig, logger *log.Logger) *tool.Orchestrator {
	servers := make([]tool.Server, 0, len(cfg.Servers))
	for name, sc := range cfg.Servers {
		servers = append(servers, tool.NewHTTPServer(name, sc.BaseURL))
	}
	retries := cfg.Retries
	if retries <= 0 {
		retries = 2
	}
	delay := time.Second
	if cfg.Delay != "" {
		if d, err := time.ParseDuration(cfg.Delay); err == nil {
			delay = d
		}
	}
	return tool.NewOrchestrator(servers, retries, delay, logger)
}

// Run 启动 HTTP 服务，addr 如 ":8080"
func (a *App) Run(addr string) error {
	a.logger.Info("API 服务启动", "addr", addr)

	// 使用 Hertz slog 扩展，与应用日志配置对齐
	output := os.Stdout
	if a.cfg.Log.File != "" {
		f, err := os.OpenFile(a.cfg.Log.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("打开日志文件失败: %w", err)
		}
		output = f
	}
	levelVar := &slog.LevelVar{}
	switch a.cfg.Log.Level {
	case "debug":
		levelVar.Set(slog.LevelDebug)
	case "warn":
		levelVar.Set(slog.LevelWarn)
	case "error":
		levelVar.Set(slog.LevelError)
	default:
		levelVar.Set(slog.LevelInfo)
	}
	hertzLogger := hertzslog.NewLogger(
		hertzslog.WithOutput(output),
		hertzslog.WithLevel(levelVar),
	)
	hlog.SetLogger(hertzLogger)

	// 可选：启用链路追踪（OpenTelemetry）
	if a.cfg.Tracing.Enable {
		serviceName := a.cfg.Tracing.ServiceName
		if serviceName == "" {
			serviceName = "synapse-api"
		}
		exportEndpoint := a.cfg.Tracing.ExportEndpoint
		if exportEndpoint == "" {
			exportEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
		}
		if exportEndpoint != "" {
			opts := []provider.Option{
				provider.WithServiceName(serviceName),
				provider.WithExportEndpoint(exportEndpoint),
			}
			if a.cfg.Tracing.Insecure {
				opts = append(opts, provider.WithInsecure())
			}
			a.otelProvider = provider.NewOpenTelemetryProvider(opts...)
			tracerOpt, cfg := hertztracing.NewServerTracer()
			a.hertz = a.router.Build(addr, tracerOpt)
			a.hertz.Use(hertztracing.ServerMiddleware(cfg))
			a.logger.Info("链路追踪已启用", "service_name", serviceName, "endpoint", exportEndpoint)
		} else {
			a.hertz = a.router.Build(addr)
		}
	} else {
		a.hertz = a.router.Build(addr)
	}

	// relay 订阅在服务生命周期内常驻，掉线自动重连
	subCtx, cancel := context.WithCancel(context.Background())
	a.subCancel = cancel
	go a.subscriber.Run(subCtx)

	return a.hertz.Run()
}

// Shutdown 优雅关闭（传入 ctx 以支持超时，如 cmd 层 WithTimeout）
func (a *App) Shutdown(ctx context.Context) error {
	if a.subCancel != nil {
		a.subCancel()
	}
	if a.otelProvider != nil {
		_ = a.otelProvider.Shutdown(ctx)
	}
	if a.hertz != nil {
		if err := a.hertz.Shutdown(ctx); err != nil {
			return err
		}
	}
	if a.queue != nil {
		_ = a.queue.Close()
	}
	if a.jobs != nil {
		a.jobs.Close()
	}
	if a.convs != nil {
		a.convs.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	a.logger.Info("API 服务已关闭")
	return nil
}
