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

package http

import (
	"github.com/cloudwego/hertz/pkg/app/server"
	hzconfig "github.com/cloudwego/hertz/pkg/common/config"

	"synapse-platform/internal/gateway"
)

// Router HTTP 路由器；ws 可为 nil（不暴露 WebSocket 端点）
type Router struct {
	handler *Handler
	ws      *gateway.WSHandler
}

// NewRouter 创建 HTTP 路由器
func NewRouter(handler *Handler, ws *gateway.WSHandler) *Router {
	return &Router{handler: handler, ws: ws}
}

// Build 创建 Hertz 实例并注册全部路由；opts 供 app 层追加（如链路追踪）
func (r *Router) Build(addr string, opts ...hzconfig.Option) *server.Hertz {
	options := append([]hzconfig.Option{server.WithHostPorts(addr)}, opts...)
	h := server.New(options...)
	r.Register(h)
	return h
}

// Register 在给定 Hertz 实例上注册路由（测试时可注入 server.Default）
func (r *Router) Register(h *server.Hertz) {
	api := h.Group("/api/v1")
	api.GET("/health", r.handler.HealthCheck)
	api.POST("/process", r.handler.ProcessInput)
	api.GET("/jobs/status/:job_id", r.handler.JobStatus)
	api.POST("/conversations/:conversation_id/messages", r.handler.PostMessage)

	h.GET("/metrics", r.handler.Metrics)

	if r.ws != nil {
		h.GET("/ws/:client_id", r.ws.Handle)
	}
}
