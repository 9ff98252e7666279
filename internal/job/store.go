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

package job

import (
	"context"
	"encoding/json"
	"errors"
)

var (
	// ErrNotFound 指定 job 不存在；任何状态转移在不存在的 job 上执行时原样返回给调用方
	ErrNotFound = errors.New("job: not found")
)

// Store 任务持久化存储：API 创建/查询，Worker 持锁变更状态
type Store interface {
	// Create 持久化新 Job（状态必须为 PENDING）
	Create(ctx context.Context, j *Job) error
	// Get 按 ID 查询；不存在返回 ErrNotFound
	Get(ctx context.Context, jobID string) (*Job, error)
	// UpdateStatus 执行一次状态转移并返回更新后的快照。
	// 进入 COMPLETED 时写 result，进入 FAILED 时写 errMsg；非法转移返回错误且不改状态。
	UpdateStatus(ctx context.Context, jobID string, to Status, result json.RawMessage, errMsg string) (*Job, error)
	// IncrementRetry 重试计数 +1
	IncrementRetry(ctx context.Context, jobID string) error
	// Close 释放底层连接
	Close()
}
