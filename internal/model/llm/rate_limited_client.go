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
	"time"

	"synapse-platform/pkg/metrics"
)

// RateLimitedClient 包装任意 Client，在真实调用前后执行限流控制
type RateLimitedClient struct {
	inner       Client
	rateLimiter *RateLimiter
}

// NewRateLimitedClient 创建带限流的 LLM 客户端；rateLimiter 为 nil 时退化为直接调用
func NewRateLimitedClient(inner Client, rateLimiter *RateLimiter) *RateLimitedClient {
	return &RateLimitedClient{inner: inner, rateLimiter: rateLimiter}
}

// Generate 实现 Client.Generate，调用前后执行限流
func (c *RateLimitedClient) Generate(ctx context.Context, prompt string, options GenerateOptions) (string, error) {
	if err := c.acquire(ctx); err != nil {
		return "", err
	}
	defer c.release()
	return c.inner.Generate(ctx, prompt, options)
}

// Chat 实现 Client.Chat，调用前后执行限流
func (c *RateLimitedClient) Chat(ctx context.Context, messages []Message, options GenerateOptions) (string, error) {
	if err := c.acquire(ctx); err != nil {
		return "", err
	}
	defer c.release()
	return c.inner.Chat(ctx, messages, options)
}

func (c *RateLimitedClient) acquire(ctx context.Context) error {
	if c.rateLimiter == nil {
		return nil
	}
	provider := c.inner.Provider()
	start := time.Now()
	if err := c.rateLimiter.Wait(ctx, provider); err != nil {
		return err
	}
	if waited := time.Since(start); waited > 100*time.Millisecond {
		metrics.RateLimitWaitSeconds.WithLabelValues(provider).Observe(waited.Seconds())
	}
	return nil
}

func (c *RateLimitedClient) release() {
	if c.rateLimiter != nil {
		c.rateLimiter.Release(c.inner.Provider())
	}
}

// Model 返回底层 Client 的模型名称
func (c *RateLimitedClient) Model() string { return c.inner.Model() }

// Provider 返回底层 Client 的提供商名称
func (c *RateLimitedClient) Provider() string { return c.inner.Provider() }
