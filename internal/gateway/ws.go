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

package gateway

import (
	"context"
	"encoding/json"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/hertz-contrib/websocket"

	"synapse-platform/internal/job"
	"synapse-platform/pkg/log"
)

// ClarificationResumer 处理客户端发回的澄清回复
type ClarificationResumer interface {
	ResumeClarification(ctx context.Context, jobID, userID, response string) error
}

// inboundMessage 客户端经 WebSocket 上行的消息
type inboundMessage struct {
	Type     string `json:"type"`
	JobID    string `json:"job_id"`
	Response string `json:"response"`
}

// WSHandler /ws/:client_id 端点：升级连接、登记到 Registry、
// 读循环处理澄清回复，连接断开时注销。
type WSHandler struct {
	registry *Registry
	resumer  ClarificationResumer
	logger   *log.Logger
	upgrader websocket.HertzUpgrader
}

// NewWSHandler 创建 WebSocket 端点处理器
func NewWSHandler(registry *Registry, resumer ClarificationResumer, logger *log.Logger) *WSHandler {
	return &WSHandler{
		registry: registry,
		resumer:  resumer,
		logger:   logger.WithComponent("gateway.ws"),
	}
}

// Handle hertz 路由处理函数
func (h *WSHandler) Handle(ctx context.Context, c *app.RequestContext) {
	clientID := c.Param("client_id")
	if clientID == "" {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "client_id required"})
		return
	}

	err := h.upgrader.Upgrade(c, func(conn *websocket.Conn) {
		h.registry.Register(clientID, conn)
		defer h.registry.Unregister(clientID, conn)
		h.readLoop(ctx, clientID, conn)
	})
	if err != nil {
		h.logger.Warn("websocket 升级失败", "client_id", clientID, "error", err)
	}
}

func (h *WSHandler) readLoop(ctx context.Context, clientID string, conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg inboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.logger.Warn("丢弃无法解析的上行消息", "client_id", clientID, "error", err)
			continue
		}
		switch msg.Type {
		case "clarification_response":
			if msg.JobID == "" {
				h.logger.Warn("clarification_response 缺少 job_id", "client_id", clientID)
				continue
			}
			if err := h.resumer.ResumeClarification(ctx, msg.JobID, clientID, msg.Response); err != nil {
				h.logger.Error("恢复任务失败", "job_id", msg.JobID, "error", err)
				_ = conn.WriteJSON(map[string]string{
					"type":   "error",
					"job_id": msg.JobID,
					"error":  "failed to resume job",
				})
			}
		case "ping":
			_ = conn.WriteJSON(map[string]string{"type": "pong"})
		default:
			h.logger.Debug("忽略未知消息类型", "client_id", clientID, "type", msg.Type)
		}
	}
}

// 编译期确认 Dispatcher 满足 ClarificationResumer
var _ ClarificationResumer = (*job.Dispatcher)(nil)
