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
	"sync"
)

// MemoryBroker 进程内发布订阅，开发与测试用；同时实现 Publisher 与事件源
type MemoryBroker struct {
	mu   sync.Mutex
	subs []chan string
}

// NewMemoryBroker 创建内存 broker
func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{}
}

func (b *MemoryBroker) Publish(ctx context.Context, e *Event) error {
	if e == nil || e.OwnerID == "" {
		return errors.New("relay: event owner_id required")
	}
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	b.publishRaw(string(data))
	return nil
}

// PublishRaw 发布原始消息（测试注入畸形数据用）
func (b *MemoryBroker) PublishRaw(payload string) {
	b.publishRaw(payload)
}

func (b *MemoryBroker) publishRaw(payload string) {
	b.mu.Lock()
	subs := make([]chan string, len(b.subs))
	copy(subs, b.subs)
	b.mu.Unlock()
	for _, ch := range subs {
		select {
		case ch <- payload:
		default: // 订阅者积压时丢弃，与 pub/sub 语义一致
		}
	}
}

// Subscribe 订阅事件；取消 ctx 后通道关闭
func (b *MemoryBroker) Subscribe(ctx context.Context) (<-chan string, error) {
	ch := make(chan string, 64)
	b.mu.Lock()
	b.subs = append(b.subs, ch)
	b.mu.Unlock()

	out := make(chan string)
	go func() {
		defer close(out)
		defer b.unsubscribe(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-ch:
				select {
				case out <- msg:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (b *MemoryBroker) unsubscribe(ch chan string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s == ch {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return
		}
	}
}
