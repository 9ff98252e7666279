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
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"synapse-platform/pkg/log"
)

// RedisCache Redis List 实现：LPUSH 新消息在头部，LTRIM 裁剪窗口，
// LRANGE 0..limit-1 取出后反转得到时间正序。
type RedisCache struct {
	client *redis.Client
	window int
	logger *log.Logger
}

// NewRedisCache 创建 Redis 窗口缓存；window<=0 使用 DefaultWindowSize
func NewRedisCache(client *redis.Client, window int, logger *log.Logger) *RedisCache {
	if window <= 0 {
		window = DefaultWindowSize
	}
	return &RedisCache{client: client, window: window, logger: logger}
}

func historyKey(conversationID string) string {
	return "history:" + conversationID
}

func (c *RedisCache) Append(ctx context.Context, conversationID string, e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("history: encode entry: %w", err)
	}
	// LPUSH+LTRIM 走同一事务管道，窗口不会被并发写入撑破
	pipe := c.client.TxPipeline()
	pipe.LPush(ctx, historyKey(conversationID), data)
	pipe.LTrim(ctx, historyKey(conversationID), 0, int64(c.window-1))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("history: append %s: %w", conversationID, err)
	}
	return nil
}

func (c *RedisCache) Recent(ctx context.Context, conversationID string, limit int) ([]Entry, error) {
	if limit <= 0 || limit > c.window {
		limit = c.window
	}
	raw, err := c.client.LRange(ctx, historyKey(conversationID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("history: read %s: %w", conversationID, err)
	}

	entries := make([]Entry, 0, len(raw))
	for _, item := range raw {
		var e Entry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			c.logger.Warn("history 条目损坏，跳过", "conversation_id", conversationID, "error", err)
			continue
		}
		entries = append(entries, e)
	}
	// 头部是最新消息，反转为时间正序
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}
