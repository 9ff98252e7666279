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

package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"synapse-platform/pkg/metrics"
)

const lockRetryInterval = 100 * time.Millisecond

// 只删除 token 匹配的 key，避免释放他人续上的锁
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker SET NX PX 实现的分布式 job 锁，多 Worker 进程间互斥
type RedisLocker struct {
	client *redis.Client
}

// NewRedisLocker 创建 Redis 锁
func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client}
}

func lockKey(jobID string) string {
	return fmt.Sprintf("job:%s:lock", jobID)
}

func (l *RedisLocker) Acquire(ctx context.Context, jobID string, holdTimeout, waitTimeout time.Duration) (Handle, error) {
	if holdTimeout <= 0 {
		holdTimeout = DefaultHoldTimeout
	}
	if waitTimeout <= 0 {
		waitTimeout = DefaultWaitTimeout
	}

	token := uuid.NewString()
	key := lockKey(jobID)
	start := time.Now()
	deadline := start.Add(waitTimeout)

	for {
		ok, err := l.client.SetNX(ctx, key, token, holdTimeout).Result()
		if err != nil {
			return nil, fmt.Errorf("lock: acquire %s: %w", jobID, err)
		}
		if ok {
			metrics.LockWaitSeconds.Observe(time.Since(start).Seconds())
			return &redisHandle{client: l.client, key: key, token: token}, nil
		}
		if time.Now().After(deadline) {
			return nil, ErrBusy
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockRetryInterval):
		}
	}
}

type redisHandle struct {
	client *redis.Client
	key    string
	token  string
}

func (h *redisHandle) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, h.client, []string{h.key}, h.token).Err(); err != nil {
		return fmt.Errorf("lock: release %s: %w", h.key, err)
	}
	return nil
}
