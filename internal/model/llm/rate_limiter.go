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
	"fmt"
	"sync"

	"golang.org/x/time/rate"
)

// LimitConfig Provider 维度的限流配置
type LimitConfig struct {
	RequestsPerMinute float64 `mapstructure:"requests_per_minute"`
	MaxConcurrent     int     `mapstructure:"max_concurrent"`
}

// RateLimiter Provider 维度的限流器：RPS + 并发控制
type RateLimiter struct {
	mu       sync.RWMutex
	limiters map[string]*providerLimiter
	defaults LimitConfig
}

type providerLimiter struct {
	requestLimiter *rate.Limiter
	semaphore      chan struct{}
}

// NewRateLimiter 创建限流器；未配置的 provider 用 defaults
func NewRateLimiter(configs map[string]LimitConfig, defaults LimitConfig) *RateLimiter {
	if defaults.RequestsPerMinute <= 0 {
		defaults.RequestsPerMinute = 600
	}
	if defaults.MaxConcurrent <= 0 {
		defaults.MaxConcurrent = 20
	}
	l := &RateLimiter{
		limiters: make(map[string]*providerLimiter),
		defaults: defaults,
	}
	for provider, cfg := range configs {
		l.addProvider(provider, cfg)
	}
	return l
}

func (l *RateLimiter) addProvider(provider string, cfg LimitConfig) *providerLimiter {
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = l.defaults.RequestsPerMinute
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = l.defaults.MaxConcurrent
	}

	rps := cfg.RequestsPerMinute / 60.0
	burst := int(rps * 2)
	if burst < 1 {
		burst = 1
	}
	pl := &providerLimiter{
		requestLimiter: rate.NewLimiter(rate.Limit(rps), burst),
		semaphore:      make(chan struct{}, cfg.MaxConcurrent),
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if existing, ok := l.limiters[provider]; ok {
		return existing
	}
	l.limiters[provider] = pl
	return pl
}

func (l *RateLimiter) get(provider string) *providerLimiter {
	l.mu.RLock()
	pl, ok := l.limiters[provider]
	l.mu.RUnlock()
	if ok {
		return pl
	}
	return l.addProvider(provider, l.defaults)
}

// Wait 阻塞直到取得执行许可；成功后必须调用 Release
func (l *RateLimiter) Wait(ctx context.Context, provider string) error {
	pl := l.get(provider)
	if err := pl.requestLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("llm: rate limit wait: %w", err)
	}
	select {
	case pl.semaphore <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release 释放并发 slot
func (l *RateLimiter) Release(provider string) {
	l.mu.RLock()
	pl, ok := l.limiters[provider]
	l.mu.RUnlock()
	if !ok {
		return
	}
	select {
	case <-pl.semaphore:
	default:
	}
}
