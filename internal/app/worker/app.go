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

// Package worker 组装 Worker 进程：队列消费、job 锁、LLM 选择与工具编排
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"synapse-platform/internal/conversation"
	"synapse-platform/internal/job"
	"synapse-platform/internal/lock"
	"synapse-platform/internal/model/llm"
	"synapse-platform/internal/queue"
	"synapse-platform/internal/relay"
	"synapse-platform/internal/storage/history"
	"synapse-platform/internal/storage/jobstate"
	"synapse-platform/internal/storage/redisx"
	"synapse-platform/internal/tool"
	"synapse-platform/internal/worker"
	"synapse-platform/pkg/config"
	"synapse-platform/pkg/log"
	"synapse-platform/pkg/secrets"
)

// App Worker 应用
type App struct {
	cfg    *config.Config
	logger *log.Logger

	pool *worker.Pool

	redis *redis.Client
	jobs  job.Store
	convs conversation.Store
	queue queue.Queue
}

// NewApp 按配置组装 Worker 应用
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

	if cfg.Queue.Type == "redis" || cfg.Lock.Type == "redis" || cfg.History.Type == "redis" {
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

	var locker lock.Locker
	if cfg.Lock.Type == "redis" {
		locker = lock.NewRedisLocker(a.redis)
	} else {
		locker = lock.NewMemoryLocker()
	}

	// 易失执行状态与澄清上下文：有 Redis 用 Redis，否则退化为进程内存
	var state jobstate.Store
	if a.redis != nil {
		state = jobstate.NewRedisStore(a.redis)
	} else {
		state = jobstate.NewMemoryStore()
	}

	var cache history.Cache
	if cfg.History.Type == "redis" {
		cache = history.NewRedisCache(a.redis, cfg.History.WindowSize, logger)
	} else {
		cache = history.NewMemoryCache(cfg.History.WindowSize)
	}

	var publisher relay.Publisher
	if a.redis != nil {
		publisher = relay.NewRedisPublisher(a.redis)
	} else {
		publisher = relay.NewMemoryBroker()
	}

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

	a.pool = worker.NewPool(a.queue, a.jobs, locker, state, cache, a.convs,
		selector, orchestrator, publisher, logger, worker.Options{
			Concurrency: cfg.Worker.Concurrency,
			Queues:      cfg.Worker.Queues,
			HoldTimeout: parseDuration(cfg.Lock.HoldTimeout),
			WaitTimeout: parseDuration(cfg.Lock.WaitTimeout),
		})

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

// parseDuration 解析配置里的时长；空串或非法返回 0，由下游取各自默认
func parseDuration(s string) time.Duration {
	if s == "" {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}

// Run 阻塞消费队列直到 ctx 取消
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("Worker 服务启动",
		"concurrency", a.cfg.Worker.Concurrency, "queues", a.cfg.Worker.Queues)
	a.pool.Run(ctx)
	return nil
}

// Shutdown 释放底层连接；消费循环由 Run 的 ctx 取消终止
func (a *App) Shutdown(ctx context.Context) error {
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
	a.logger.Info("Worker 服务已关闭")
	return nil
}
