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
	"time"

	"synapse-platform/pkg/log"
	"synapse-platform/pkg/metrics"
)

// Source 订阅端事件源；RedisSource 与 MemoryBroker 均实现
type Source interface {
	Subscribe(ctx context.Context) (<-chan string, error)
}

// Subscriber 网关进程内常驻的订阅循环：解析事件并按 OwnerID 投递给 Sink。
// 订阅断开后退避重连，只有 ctx 取消才退出。
type Subscriber struct {
	source  Source
	sink    Sink
	logger  *log.Logger
	backoff time.Duration
}

// NewSubscriber 创建订阅循环
func NewSubscriber(source Source, sink Sink, logger *log.Logger) *Subscriber {
	return &Subscriber{
		source:  source,
		sink:    sink,
		logger:  logger.WithComponent("relay"),
		backoff: time.Second,
	}
}

// Run 阻塞运行订阅循环直到 ctx 取消；调用方负责放入 goroutine
func (s *Subscriber) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		ch, err := s.source.Subscribe(ctx)
		if err != nil {
			s.logger.Error("订阅失败，退避后重试", "error", err, "backoff", s.backoff)
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.backoff):
			}
			continue
		}

		s.logger.Info("relay subscriber started", "channel", Channel)
		s.consume(ctx, ch)
		if ctx.Err() != nil {
			return
		}
		s.logger.Warn("订阅中断，退避后重建", "backoff", s.backoff)
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.backoff):
		}
	}
}

func (s *Subscriber) consume(ctx context.Context, ch <-chan string) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			s.handle(msg)
		}
	}
}

func (s *Subscriber) handle(raw string) {
	var e Event
	if err := json.Unmarshal([]byte(raw), &e); err != nil || e.OwnerID == "" {
		s.logger.Warn("丢弃畸形事件", "error", err)
		metrics.RelayDropped.WithLabelValues("malformed").Inc()
		return
	}
	if s.sink.Deliver(&e) {
		metrics.RelayDelivered.Inc()
		return
	}
	// owner 连接不在本进程，其他网关实例可能持有
	metrics.RelayDropped.WithLabelValues("no_connection").Inc()
}
