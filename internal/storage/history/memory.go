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

package history

import (
	"context"
	"sync"
)

// MemoryCache 内存实现，开发与测试用；窗口语义与 RedisCache 一致
type MemoryCache struct {
	mu     sync.RWMutex
	window int
	// 每个会话按时间正序存最近 window 条
	conversations map[string][]Entry
}

// NewMemoryCache 创建内存窗口缓存；window<=0 使用 DefaultWindowSize
func NewMemoryCache(window int) *MemoryCache {
	if window <= 0 {
		window = DefaultWindowSize
	}
	return &MemoryCache{window: window, conversations: make(map[string][]Entry)}
}

func (c *MemoryCache) Append(ctx context.Context, conversationID string, e Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	entries := append(c.conversations[conversationID], e)
	if len(entries) > c.window {
		entries = entries[len(entries)-c.window:]
	}
	c.conversations[conversationID] = entries
	return nil
}

func (c *MemoryCache) Recent(ctx context.Context, conversationID string, limit int) ([]Entry, error) {
	if limit <= 0 || limit > c.window {
		limit = c.window
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	entries := c.conversations[conversationID]
	if len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	out := make([]Entry, len(entries))
	copy(out, entries)
	return out, nil
}
