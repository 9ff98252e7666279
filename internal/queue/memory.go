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

package queue

import (
	"context"
	"errors"
	"sync"
	"time"
)

// MemoryQueue 内存实现，开发与测试用；FIFO 语义与 RedisQueue 一致
type MemoryQueue struct {
	mu     sync.Mutex
	queues map[string][]*Task
	closed bool
	wake   chan struct{}
}

// NewMemoryQueue 创建内存任务队列
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		queues: make(map[string][]*Task),
		wake:   make(chan struct{}, 1),
	}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, queueName string, task *Task) error {
	if task == nil || task.Type == "" {
		return errors.New("queue: task type required")
	}
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return errors.New("queue: closed")
	}
	cp := *task
	q.queues[queueName] = append(q.queues[queueName], &cp)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return nil
}

func (q *MemoryQueue) Dequeue(ctx context.Context, queueNames []string, timeout time.Duration) (*Task, error) {
	deadline := time.Now().Add(timeout)
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return nil, errors.New("queue: closed")
		}
		for _, name := range queueNames {
			items := q.queues[name]
			if len(items) > 0 {
				task := items[0]
				q.queues[name] = items[1:]
				q.mu.Unlock()
				return task, nil
			}
		}
		q.mu.Unlock()

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-q.wake:
		case <-time.After(remaining):
			return nil, nil
		}
	}
}

// Len 当前队列长度（测试用）
func (q *MemoryQueue) Len(queueName string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queues[queueName])
}

func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	return nil
}
