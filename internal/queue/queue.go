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

// Package queue 任务队列抽象：Dispatcher 入队，Worker 阻塞出队。
// 队列本身不保证投递后的执行结果，失败重试由 Worker 负责。
package queue

import (
	"context"
	"encoding/json"
	"time"
)

// Task 队列上的类型化工作项；Payload 内容由任务类型约定
type Task struct {
	Type           string          `json:"type"`
	JobID          string          `json:"job_id,omitempty"`
	UserID         string          `json:"user_id,omitempty"`
	ConversationID string          `json:"conversation_id,omitempty"`
	Payload        json.RawMessage `json:"payload,omitempty"`
}

// Queue 任务队列接口
type Queue interface {
	// Enqueue 将任务放入指定队列
	Enqueue(ctx context.Context, queueName string, task *Task) error
	// Dequeue 从多个队列中阻塞取出一个任务；timeout 内无任务返回 (nil, nil)
	Dequeue(ctx context.Context, queueNames []string, timeout time.Duration) (*Task, error)
	// Close 释放底层资源
	Close() error
}
