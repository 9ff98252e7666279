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
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"synapse-platform/pkg/metrics"
)

const queueKeyPrefix = "queue:"

// RedisQueue Redis List 实现：LPUSH 入队，BRPOP 出队（FIFO）
type RedisQueue struct {
	client *redis.Client
}

// NewRedisQueue 创建 Redis 任务队列；client 由调用方注入并管理生命周期
func NewRedisQueue(client *redis.Client) *RedisQueue {
	return &RedisQueue{client: client}
}

func (q *RedisQueue) Enqueue(ctx context.Context, queueName string, task *Task) error {
	if task == nil || task.Type == "" {
		return errors.New("queue: task type required")
	}
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("queue: marshal task: %w", err)
	}
	if err := q.client.LPush(ctx, queueKeyPrefix+queueName, data).Err(); err != nil {
		return fmt.Errorf("queue: enqueue to %s: %w", queueName, err)
	}
	metrics.QueueOps.WithLabelValues(queueName, "enqueue").Inc()
	return nil
}

func (q *RedisQueue) Dequeue(ctx context.Context, queueNames []string, timeout time.Duration) (*Task, error) {
	keys := make([]string, len(queueNames))
	for i, name := range queueNames {
		keys[i] = queueKeyPrefix + name
	}
	res, err := q.client.BRPop(ctx, timeout, keys...).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("queue: dequeue: %w", err)
	}
	// BRPop 返回 [key, value]
	if len(res) != 2 {
		return nil, fmt.Errorf("queue: unexpected brpop reply: %v", res)
	}
	var task Task
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		return nil, fmt.Errorf("queue: unmarshal task: %w", err)
	}
	metrics.QueueOps.WithLabelValues(res[0][len(queueKeyPrefix):], "dequeue").Inc()
	return &task, nil
}

func (q *RedisQueue) Close() error {
	return nil // client 由注入方关闭
}
