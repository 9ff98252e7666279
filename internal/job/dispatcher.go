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

package job

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"synapse-platform/internal/queue"
	"synapse-platform/pkg/log"
)

// SubmitRequest 一次处理任务的提交参数
type SubmitRequest struct {
	UserID         string          `json:"user_id"`
	ConversationID string          `json:"conversation_id"`
	InputType      string          `json:"input_type"`
	InputData      json.RawMessage `json:"input_data"`
}

// Dispatcher 任务分发器：先持久化 PENDING Job，再向队列投递类型化工作项。
// 入队失败时 Job 保持 PENDING 可被轮询观察，不在此层自动重投。
type Dispatcher struct {
	store  Store
	queue  queue.Queue
	logger *log.Logger
}

// NewDispatcher 创建 Dispatcher
func NewDispatcher(store Store, q queue.Queue, logger *log.Logger) *Dispatcher {
	return &Dispatcher{store: store, queue: q, logger: logger}
}

// Submit 创建 Job 并投递 route_input 工作项到 cpu_light 队列。
// 持久化成功但入队失败时返回已创建的 Job 和错误，由调用方决定如何上报。
func (d *Dispatcher) Submit(ctx context.Context, req SubmitRequest) (*Job, error) {
	if req.UserID == "" || req.ConversationID == "" {
		return nil, fmt.Errorf("job: user_id and conversation_id required")
	}
	j := &Job{
		ID:             uuid.NewString(),
		UserID:         req.UserID,
		ConversationID: req.ConversationID,
		Type:           req.InputType,
		Status:         StatusPending,
		InputData:      req.InputData,
		Priority:       DefaultPriority,
	}
	if err := d.store.Create(ctx, j); err != nil {
		return nil, fmt.Errorf("job: persist: %w", err)
	}

	task := &queue.Task{
		Type:           TaskRouteInput,
		JobID:          j.ID,
		UserID:         j.UserID,
		ConversationID: j.ConversationID,
		Payload:        req.InputData,
	}
	if err := d.queue.Enqueue(ctx, QueueLight, task); err != nil {
		d.logger.Error("任务入队失败，Job 保持 PENDING 等待轮询", "job_id", j.ID, "error", err)
		return j, fmt.Errorf("job: enqueue: %w", err)
	}
	d.logger.Info("job submitted", "job_id", j.ID, "user_id", j.UserID, "queue", QueueLight)
	return j, nil
}

// ResumeClarification 将用户的澄清回复投递回 cpu_light 队列，恢复同一 job id
func (d *Dispatcher) ResumeClarification(ctx context.Context, jobID, userID, response string) error {
	payload, _ := json.Marshal(map[string]string{"response": response})
	task := &queue.Task{
		Type:    TaskResumeClarification,
		JobID:   jobID,
		UserID:  userID,
		Payload: payload,
	}
	if err := d.queue.Enqueue(ctx, QueueLight, task); err != nil {
		return fmt.Errorf("job: enqueue clarification resume: %w", err)
	}
	d.logger.Info("clarification resume queued", "job_id", jobID, "queue", QueueLight)
	return nil
}

// DispatchTitleGeneration 会话首条消息触发：标题生成走 cpu_heavy
func (d *Dispatcher) DispatchTitleGeneration(ctx context.Context, conversationID, firstMessage string) error {
	payload, _ := json.Marshal(map[string]string{"content": firstMessage})
	task := &queue.Task{
		Type:           TaskGenerateTitle,
		ConversationID: conversationID,
		Payload:        payload,
	}
	return d.queue.Enqueue(ctx, QueueHeavy, task)
}

// DispatchSummarization 长会话周期性触发：摘要生成走 cpu_heavy
func (d *Dispatcher) DispatchSummarization(ctx context.Context, conversationID, userID string) error {
	task := &queue.Task{
		Type:           TaskSummarizeConversation,
		ConversationID: conversationID,
		UserID:         userID,
	}
	return d.queue.Enqueue(ctx, QueueHeavy, task)
}
