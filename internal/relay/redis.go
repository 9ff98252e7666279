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

package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisPublisher Redis PUBLISH 实现
type RedisPublisher struct {
	client *redis.Client
}

// NewRedisPublisher 创建 Redis 发布端
func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

func (p *RedisPublisher) Publish(ctx context.Context, e *Event) error {
	if e == nil || e.OwnerID == "" {
		return errors.New("relay: event owner_id required")
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("relay: encode event: %w", err)
	}
	if err := p.client.Publish(ctx, Channel, data).Err(); err != nil {
		return fmt.Errorf("relay: publish: %w", err)
	}
	return nil
}

// RedisSource Redis SUBSCRIBE 实现的事件源
type RedisSource struct {
	client *redis.Client
}

// NewRedisSource 创建 Redis 订阅端
func NewRedisSource(client *redis.Client) *RedisSource {
	return &RedisSource{client: client}
}

// Subscribe 订阅事件频道，返回原始消息通道；取消 ctx 后通道关闭
func (s *RedisSource) Subscribe(ctx context.Context) (<-chan string, error) {
	sub := s.client.Subscribe(ctx, Channel)
	// 确认订阅建立，失败尽早暴露
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("relay: subscribe %s: %w", Channel, err)
	}

	out := make(chan string)
	go func() {
		defer close(out)
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- msg.Payload:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
