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

package llm

import (
	"context"
	"errors"
	"sync"

	"synapse-platform/pkg/config"
	"synapse-platform/pkg/log"
	"synapse-platform/pkg/secrets"
)

// ErrNoProvider 优先级列表里没有任何可用的 provider
var ErrNoProvider = errors.New("llm: no usable provider configured")

// Selector 按配置的优先级顺序选择第一个 API Key 可解析的 provider。
// 同一 provider 的客户端只构建一次。
type Selector struct {
	cfg     config.LLMConfig
	secrets secrets.Store
	limiter *RateLimiter
	logger  *log.Logger

	mu      sync.Mutex
	clients map[string]Client
}

// NewSelector 创建 provider 选择器
func NewSelector(cfg config.LLMConfig, secretStore secrets.Store, limiter *RateLimiter, logger *log.Logger) *Selector {
	return &Selector{
		cfg:     cfg,
		secrets: secretStore,
		limiter: limiter,
		logger:  logger.WithComponent("llm"),
		clients: make(map[string]Client),
	}
}

// Select 返回当前应使用的客户端；所有 provider 均不可用时返回 ErrNoProvider
func (s *Selector) Select(ctx context.Context) (Client, error) {
	order := s.cfg.Priority
	if len(order) == 0 {
		for name := range s.cfg.Providers {
			order = append(order, name)
		}
	}

	for _, name := range order {
		pc, ok := s.cfg.Providers[name]
		if !ok {
			s.logger.Warn("优先级中的 provider 未配置", "provider", name)
			continue
		}
		apiKey, err := s.resolveKey(ctx, pc)
		if err != nil || apiKey == "" {
			s.logger.Debug("provider API key 不可用，跳过", "provider", name, "error", err)
			continue
		}
		client, err := s.client(name, pc, apiKey)
		if err != nil {
			s.logger.Warn("provider 客户端构建失败", "provider", name, "error", err)
			continue
		}
		return client, nil
	}
	return nil, ErrNoProvider
}

func (s *Selector) resolveKey(ctx context.Context, pc config.ProviderConfig) (string, error) {
	if pc.APIKeyRef != "" {
		return s.secrets.Get(ctx, pc.APIKeyRef)
	}
	return pc.APIKey, nil
}

func (s *Selector) client(name string, pc config.ProviderConfig, apiKey string) (Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.clients[name]; ok {
		return c, nil
	}
	inner, err := NewClient(name, pc.Model, apiKey, pc.BaseURL)
	if err != nil {
		return nil, err
	}
	c := Client(NewRateLimitedClient(inner, s.limiter))
	s.clients[name] = c
	return c, nil
}
