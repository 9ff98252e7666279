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

// Package gateway 网关进程的客户端连接管理与 WebSocket 端点。
// 每个进程只登记自己持有的连接；跨进程投递由 relay 完成。
package gateway

import (
	"sync"

	"synapse-platform/internal/relay"
	"synapse-platform/pkg/log"
)

// ClientConn 可向客户端推送 JSON 消息的连接
type ClientConn interface {
	WriteJSON(v any) error
}

// Registry 进程内客户端连接表。同一 client_id 重复注册时新连接替换旧连接。
type Registry struct {
	mu     sync.RWMutex
	conns  map[string]ClientConn
	logger *log.Logger
}

// NewRegistry 创建连接表
func NewRegistry(logger *log.Logger) *Registry {
	return &Registry{
		conns:  make(map[string]ClientConn),
		logger: logger.WithComponent("gateway"),
	}
}

// Register 登记连接；返回被替换的旧连接（无则 nil），由调用方决定是否关闭
func (r *Registry) Register(clientID string, conn ClientConn) ClientConn {
	r.mu.Lock()
	defer r.mu.Unlock()
	old := r.conns[clientID]
	r.conns[clientID] = conn
	r.logger.Info("client connected", "client_id", clientID, "replaced", old != nil)
	return old
}

// Unregister 移除连接；仅当表中仍是同一连接时移除，避免误删重连后的新连接
func (r *Registry) Unregister(clientID string, conn ClientConn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conns[clientID] == conn {
		delete(r.conns, clientID)
		r.logger.Info("client disconnected", "client_id", clientID)
	}
}

// Len 当前连接数
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Deliver 把事件推给 OwnerID 对应的连接；连接不在本进程返回 false。
// 写失败按已处理计，断线清理由读循环负责。
func (r *Registry) Deliver(e *relay.Event) bool {
	r.mu.RLock()
	conn, ok := r.conns[e.OwnerID]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if err := conn.WriteJSON(e); err != nil {
		r.logger.Warn("事件推送失败", "client_id", e.OwnerID, "job_id", e.JobID, "error", err)
	}
	return true
}
