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

// Package relay Worker 与网关进程之间的事件中继。Worker 把 job 事件发布到
// 统一频道，每个网关进程订阅后按 owner_id 路由到本进程持有的连接。
// 尽力而为投递：目标连接不在本进程或已断开时事件丢弃。
package relay

import (
	"context"
	"encoding/json"
)

// Channel 所有 job 事件共用的发布订阅频道
const Channel = "job-updates"

// Event 跨进程传递的 job 事件；OwnerID 是路由键（接收方客户端标识）
type Event struct {
	OwnerID string          `json:"owner_id"`
	JobID   string          `json:"job_id"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Publisher Worker 侧的事件发布
type Publisher interface {
	Publish(ctx context.Context, e *Event) error
}

// Sink 网关侧的事件接收端：Subscriber 解析并路由后调用 Deliver。
// 返回 false 表示 owner 不在本进程，事件按丢弃计。
type Sink interface {
	Deliver(e *Event) bool
}
