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

// Package jobstate Job 的易失性运行态：实时状态哈希与待恢复的澄清请求。
// 真相源仍是 job.Store，这里只为轮询端和澄清恢复提供低延迟读取。
package jobstate

import (
	"context"
	"errors"
	"time"
)

// ClarificationTTL 澄清请求在无人响应时的保留时间
const ClarificationTTL = 24 * time.Hour

// ErrNotFound 指定 key 无数据
var ErrNotFound = errors.New("jobstate: not found")

// Clarification Worker 暂停任务时保存的澄清请求与恢复所需上下文。
// Options 是模型给用户的候选回答，保持模型给出的顺序。
type Clarification struct {
	JobID     string         `json:"job_id"`
	UserID    string         `json:"user_id"`
	Question  string         `json:"question"`
	Options   []string       `json:"options,omitempty"`
	Context   map[string]any `json:"context,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Store 易失性状态存储
type Store interface {
	// SetState 合并写入 job 的运行态字段（已有字段保留）
	SetState(ctx context.Context, jobID string, fields map[string]any) error
	// GetState 读取 job 的全部运行态字段；无数据返回 ErrNotFound
	GetState(ctx context.Context, jobID string) (map[string]any, error)
	// SaveClarification 保存澄清请求，带 ClarificationTTL 过期
	SaveClarification(ctx context.Context, c *Clarification) error
	// GetClarification 读取澄清请求；不存在或已过期返回 ErrNotFound
	GetClarification(ctx context.Context, jobID string) (*Clarification, error)
	// ConsumeClarification 读取并删除澄清请求，恢复任务时调用
	ConsumeClarification(ctx context.Context, jobID string) (*Clarification, error)
}
