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

// Package http 对外 HTTP 入口：任务提交与查询、会话消息、健康检查与 /metrics
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"synapse-platform/internal/conversation"
	"synapse-platform/internal/job"
	"synapse-platform/pkg/metrics"
)

// Submitter 异步任务提交入口（job.Dispatcher 实现）
type Submitter interface {
	Submit(ctx context.Context, req job.SubmitRequest) (*job.Job, error)
}

// MessageService 会话消息入口（conversation.Service 实现）
type MessageService interface {
	PostMessage(ctx context.Context, req conversation.PostMessageRequest) (*conversation.PostMessageResult, error)
}

// Handler HTTP 处理器
type Handler struct {
	submitter Submitter
	jobs      job.Store
	messages  MessageService
}

// NewHandler 创建 HTTP 处理器
func NewHandler(submitter Submitter, jobs job.Store, messages MessageService) *Handler {
	return &Handler{
		submitter: submitter,
		jobs:      jobs,
		messages:  messages,
	}
}

// HealthCheck 健康检查
// GET /api/v1/health
func (h *Handler) HealthCheck(c context.Context, ctx *app.RequestContext) {
	ctx.JSON(consts.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
		"service":   "synapse-api",
	})
}

type processRequest struct {
	UserID         string          `json:"user_id"`
	ConversationID string          `json:"conversation_id"`
	InputType      string          `json:"input_type"`
	InputData      json.RawMessage `json:"input_data"`
}

// ProcessInput 提交一个异步处理任务，立即返回 202 与状态查询地址
// POST /api/v1/process
func (h *Handler) ProcessInput(c context.Context, ctx *app.RequestContext) {
	var req processRequest
	if err := json.Unmarshal(ctx.Request.Body(), &req); err != nil {
		ctx.JSON(consts.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.UserID == "" || req.ConversationID == "" {
		ctx.JSON(consts.StatusBadRequest, map[string]string{
			"error": "user_id and conversation_id are required",
		})
		return
	}
	if req.InputType == "" {
		req.InputType = "chat_message"
	}

	j, err := h.submitter.Submit(c, job.SubmitRequest{
		UserID:         req.UserID,
		ConversationID: req.ConversationID,
		InputType:      req.InputType,
		InputData:      req.InputData,
	})
	if err != nil {
		if j == nil {
			hlog.CtxErrorf(c, "submit job failed: %v", err)
			ctx.JSON(consts.StatusInternalServerError, map[string]string{"error": "failed to submit job"})
			return
		}
		// 已持久化但入队失败：job 保持 PENDING，仍可通过状态地址观察
		hlog.CtxWarnf(c, "job %s persisted but enqueue failed: %v", j.ID, err)
	}

	ctx.JSON(consts.StatusAccepted, map[string]string{
		"job_id":     j.ID,
		"status":     string(j.Status),
		"status_url": fmt.Sprintf("/api/v1/jobs/status/%s", j.ID),
	})
}

type jobStatusResponse struct {
	JobID        string          `json:"job_id"`
	Status       string          `json:"status"`
	ResultData   json.RawMessage `json:"result_data,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
	RetryCount   int             `json:"retry_count"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	StartedAt    *time.Time      `json:"started_at,omitempty"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
	History      []statusEvent   `json:"history"`
}

// statusEvent 从时间戳还原的状态轨迹条目
type statusEvent struct {
	Status string    `json:"status"`
	At     time.Time `json:"at"`
}

// statusHistory 由 created/started/completed 时间戳还原可观察的状态轨迹
func statusHistory(j *job.Job) []statusEvent {
	events := []statusEvent{{Status: string(job.StatusPending), At: j.CreatedAt}}
	if !j.StartedAt.IsZero() {
		events = append(events, statusEvent{Status: string(job.StatusProcessing), At: j.StartedAt})
	}
	if !j.CompletedAt.IsZero() {
		events = append(events, statusEvent{Status: string(j.Status), At: j.CompletedAt})
	} else if j.Status != job.StatusPending && j.Status != job.StatusProcessing {
		events = append(events, statusEvent{Status: string(j.Status), At: j.UpdatedAt()})
	}
	return events
}

// JobStatus 查询任务状态
// GET /api/v1/jobs/status/:job_id
func (h *Handler) JobStatus(c context.Context, ctx *app.RequestContext) {
	jobID := ctx.Param("job_id")
	if jobID == "" {
		ctx.JSON(consts.StatusBadRequest, map[string]string{"error": "job_id is required"})
		return
	}

	j, err := h.jobs.Get(c, jobID)
	if err != nil {
		if errors.Is(err, job.ErrNotFound) {
			ctx.JSON(consts.StatusNotFound, map[string]string{"error": "job not found"})
			return
		}
		hlog.CtxErrorf(c, "get job %s failed: %v", jobID, err)
		ctx.JSON(consts.StatusInternalServerError, map[string]string{"error": "failed to load job"})
		return
	}

	resp := jobStatusResponse{
		JobID:        j.ID,
		Status:       string(j.Status),
		ResultData:   j.ResultData,
		ErrorMessage: j.ErrorMessage,
		RetryCount:   j.RetryCount,
		CreatedAt:    j.CreatedAt,
		UpdatedAt:    j.UpdatedAt(),
		History:      statusHistory(j),
	}
	if !j.StartedAt.IsZero() {
		t := j.StartedAt
		resp.StartedAt = &t
	}
	if !j.CompletedAt.IsZero() {
		t := j.CompletedAt
		resp.CompletedAt = &t
	}
	ctx.JSON(consts.StatusOK, resp)
}

type postMessageRequest struct {
	UserID  string `json:"user_id"`
	Content string `json:"content"`
	Mode    string `json:"mode"`
}

// PostMessage 向会话提交一条消息。
// 异步模式返回 202 与 job_id；tools 模式同步执行并返回 200 与回复。
// POST /api/v1/conversations/:conversation_id/messages
func (h *Handler) PostMessage(c context.Context, ctx *app.RequestContext) {
	conversationID := ctx.Param("conversation_id")
	var req postMessageRequest
	if err := json.Unmarshal(ctx.Request.Body(), &req); err != nil {
		ctx.JSON(consts.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if conversationID == "" || req.UserID == "" || req.Content == "" {
		ctx.JSON(consts.StatusBadRequest, map[string]string{
			"error": "conversation_id, user_id and content are required",
		})
		return
	}

	result, err := h.messages.PostMessage(c, conversation.PostMessageRequest{
		ConversationID: conversationID,
		UserID:         req.UserID,
		Content:        req.Content,
		Mode:           req.Mode,
	})
	if err != nil {
		hlog.CtxErrorf(c, "post message to conversation %s failed: %v", conversationID, err)
		ctx.JSON(consts.StatusInternalServerError, map[string]string{"error": "failed to process message"})
		return
	}

	if result.Reply != "" {
		ctx.JSON(consts.StatusOK, map[string]string{"reply": result.Reply})
		return
	}
	ctx.JSON(consts.StatusAccepted, map[string]string{
		"job_id":     result.JobID,
		"status_url": fmt.Sprintf("/api/v1/jobs/status/%s", result.JobID),
	})
}

// Metrics Prometheus 文本格式指标
// GET /metrics
func (h *Handler) Metrics(c context.Context, ctx *app.RequestContext) {
	var buf bytes.Buffer
	if err := metrics.WritePrometheus(&buf); err != nil {
		ctx.JSON(consts.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	ctx.Data(consts.StatusOK, "text/plain; version=0.0.4; charset=utf-8", buf.Bytes())
}
