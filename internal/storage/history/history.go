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

// Package history 会话消息的滑动窗口缓存：只保留每个会话最近的 N 条，
// 供模型上下文组装快速读取。完整历史在会话存储里，这里丢了可以重建。
package history

import (
	"context"
	"time"
)

// DefaultWindowSize 默认窗口大小
const DefaultWindowSize = 50

// Entry 窗口中的一条消息
type Entry struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Cache 滑动窗口缓存接口
type Cache interface {
	// Append 追加一条消息并裁剪到窗口大小；两步为原子操作
	Append(ctx context.Context, conversationID string, e Entry) error
	// Recent 返回最近 limit 条消息，按时间正序；损坏的条目跳过不报错
	Recent(ctx context.Context, conversationID string, limit int) ([]Entry, error)
}
