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

package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"synapse-platform/internal/conversation"
	"synapse-platform/internal/job"
	"synapse-platform/internal/lock"
	"synapse-platform/internal/model/llm"
	"synapse-platform/internal/queue"
	"synapse-platform/internal/relay"
	"synapse-platform/internal/storage/history"
	"synapse-platform/internal/storage/jobstate"
	"synapse-platform/internal/tool"
	"synapse-platform/pkg/metrics"
)

// clarificationTool 模型用这个"工具名"请求用户澄清
const clarificationTool = "request_clarification"

type routePayload struct {
	Content string `json:"content"`
}

type resumePayload struct {
	Response string `json:"response"`
}

// handleRouteInput 主流程：锁内 PENDING→PROCESSING→生成→终态或暂停等待澄清
func (p *Pool) handleRouteInput(ctx context.Context, task *queue.Task) error {
	start := time.Now()
	defer func() {
		metrics.JobDuration.WithLabelValues(job.TaskRouteInput).Observe(time.Since(start).Seconds())
	}()

	handle, err := p.locker.Acquire(ctx, task.JobID, p.opts.HoldTimeout, p.opts.WaitTimeout)
	if err != nil {
		if errors.Is(err, lock.ErrBusy) {
			// 另一个 worker 正在处理，放回队列稍后再试
			p.logger.Warn("job 锁被占用，任务重新入队", "job_id", task.JobID)
			return p.queue.Enqueue(ctx, job.QueueLight, task)
		}
		return fmt.Errorf("worker: acquire lock: %w", err)
	}
	defer handle.Release(context.WithoutCancel(ctx))

	j, err := p.jobs.UpdateStatus(ctx, task.JobID, job.StatusProcessing, nil, "")
	if err != nil {
		return fmt.Errorf("worker: to PROCESSING: %w", err)
	}
	p.setState(ctx, j.ID, map[string]any{"status": string(j.Status)})

	var payload routePayload
	if err := json.Unmarshal(task.Payload, &payload); err != nil || payload.Content == "" {
		return p.failJob(ctx, j, "invalid input payload")
	}
	return p.generate(ctx, j, payload.Content)
}

// handleResumeClarification 澄清回复到达：消费请求、回到 PROCESSING 继续生成。
// 澄清请求已过期时按设计终止任务。
func (p *Pool) handleResumeClarification(ctx context.Context, task *queue.Task) error {
	start := time.Now()
	defer func() {
		metrics.JobDuration.WithLabelValues(job.TaskResumeClarification).Observe(time.Since(start).Seconds())
	}()

	handle, err := p.locker.Acquire(ctx, task.JobID, p.opts.HoldTimeout, p.opts.WaitTimeout)
	if err != nil {
		if errors.Is(err, lock.ErrBusy) {
			p.logger.Warn("job 锁被占用，任务重新入队", "job_id", task.JobID)
			return p.queue.Enqueue(ctx, job.QueueLight, task)
		}
		return fmt.Errorf("worker: acquire lock: %w", err)
	}
	defer handle.Release(context.WithoutCancel(ctx))

	j, err := p.jobs.Get(ctx, task.JobID)
	if err != nil {
		return fmt.Errorf("worker: load job: %w", err)
	}

	clarification, err := p.state.ConsumeClarification(ctx, j.ID)
	if err != nil {
		if errors.Is(err, jobstate.ErrNotFound) {
			return p.failJob(ctx, j, "clarification request expired")
		}
		return fmt.Errorf("worker: consume clarification: %w", err)
	}

	j, err = p.jobs.UpdateStatus(ctx, j.ID, job.StatusProcessing, nil, "")
	if err != nil {
		return fmt.Errorf("worker: resume to PROCESSING: %w", err)
	}
	p.setState(ctx, j.ID, map[string]any{"status": string(j.Status)})

	var payload resumePayload
	_ = json.Unmarshal(task.Payload, &payload)
	combined := fmt.Sprintf("（澄清问题：%s）用户回答：%s", clarification.Question, payload.Response)
	return p.generate(ctx, j, combined)
}

// generate 选择模型、带会话上文执行工具编排，按结果走终态或澄清暂停
func (p *Pool) generate(ctx context.Context, j *job.Job, userText string) error {
	client, err := p.selector.Select(ctx)
	if err != nil {
		return p.failJob(ctx, j, err.Error())
	}

	reply, err := p.tools.Run(ctx, client, p.contextMessages(ctx, j.ConversationID), userText)
	if err != nil {
		return p.failJob(ctx, j, err.Error())
	}

	if question, options, ok := clarificationRequest(reply); ok {
		return p.awaitClarification(ctx, j, question, options)
	}
	return p.completeJob(ctx, j, reply)
}

// clarificationRequest 识别模型发出的澄清请求；options 保持模型给出的顺序
func clarificationRequest(reply string) (string, []string, bool) {
	for _, call := range tool.ExtractCalls(reply) {
		if call.Tool != clarificationTool {
			continue
		}
		q, ok := call.Arguments["question"].(string)
		if !ok || q == "" {
			continue
		}
		var options []string
		if raw, ok := call.Arguments["options"].([]any); ok {
			for _, o := range raw {
				if s, ok := o.(string); ok && s != "" {
					options = append(options, s)
				}
			}
		}
		return q, options, true
	}
	return "", nil, false
}

func (p *Pool) awaitClarification(ctx context.Context, j *job.Job, question string, options []string) error {
	err := p.state.SaveClarification(ctx, &jobstate.Clarification{
		JobID:     j.ID,
		UserID:    j.UserID,
		Question:  question,
		Options:   options,
		CreatedAt: time.Now(),
	})
	if err != nil {
		return p.failJob(ctx, j, "failed to save clarification: "+err.Error())
	}

	j, err = p.jobs.UpdateStatus(ctx, j.ID, job.StatusAwaitingClarification, nil, "")
	if err != nil {
		return fmt.Errorf("worker: to AWAITING_CLARIFICATION: %w", err)
	}
	p.setState(ctx, j.ID, map[string]any{"status": string(j.Status), "question": question})

	payload, _ := json.Marshal(map[string]any{
		"status":   string(job.StatusAwaitingClarification),
		"question": question,
		"options":  options,
	})
	p.publish(ctx, &relay.Event{
		OwnerID: j.UserID,
		JobID:   j.ID,
		Type:    "clarification_request",
		Payload: payload,
	})
	return nil
}

func (p *Pool) completeJob(ctx context.Context, j *job.Job, reply string) error {
	result, _ := json.Marshal(map[string]string{"text": reply})
	j, err := p.jobs.UpdateStatus(ctx, j.ID, job.StatusCompleted, result, "")
	if err != nil {
		return fmt.Errorf("worker: to COMPLETED: %w", err)
	}
	metrics.JobTotal.WithLabelValues("completed").Inc()
	p.setState(ctx, j.ID, map[string]any{"status": string(j.Status)})

	if j.ConversationID != "" {
		p.saveAssistantMessage(ctx, j.ConversationID, reply)
	}

	payload, _ := json.Marshal(map[string]string{
		"status": string(job.StatusCompleted),
		"text":   reply,
	})
	p.publish(ctx, &relay.Event{
		OwnerID: j.UserID,
		JobID:   j.ID,
		Type:    "job_update",
		Payload: payload,
	})
	return nil
}

func (p *Pool) failJob(ctx context.Context, j *job.Job, errMsg string) error {
	j, err := p.jobs.UpdateStatus(ctx, j.ID, job.StatusFailed, nil, errMsg)
	if err != nil {
		return fmt.Errorf("worker: to FAILED: %w", err)
	}
	metrics.JobTotal.WithLabelValues("failed").Inc()
	p.setState(ctx, j.ID, map[string]any{"status": string(j.Status), "error": errMsg})

	payload, _ := json.Marshal(map[string]string{
		"status": string(job.StatusFailed),
		"error":  errMsg,
	})
	p.publish(ctx, &relay.Event{
		OwnerID: j.UserID,
		JobID:   j.ID,
		Type:    "job_update",
		Payload: payload,
	})
	return nil
}

// handleGenerateTitle 首条消息触发的标题生成
func (p *Pool) handleGenerateTitle(ctx context.Context, task *queue.Task) error {
	start := time.Now()
	defer func() {
		metrics.JobDuration.WithLabelValues(job.TaskGenerateTitle).Observe(time.Since(start).Seconds())
	}()

	var payload routePayload
	if err := json.Unmarshal(task.Payload, &payload); err != nil || payload.Content == "" {
		return errors.New("worker: title task missing content")
	}
	client, err := p.selector.Select(ctx)
	if err != nil {
		return fmt.Errorf("worker: title generation: %w", err)
	}

	prompt := fmt.Sprintf("为下面这条开场消息生成一个不超过 10 个字的会话标题，只输出标题本身：\n\n%s", payload.Content)
	title, err := client.Generate(ctx, prompt, llm.GenerateOptions{Temperature: 0.3, MaxTokens: 30})
	if err != nil {
		return fmt.Errorf("worker: title generation: %w", err)
	}
	title = strings.TrimSpace(strings.Trim(strings.TrimSpace(title), `"`))
	if title == "" {
		return errors.New("worker: empty title from model")
	}
	return p.convs.Rename(ctx, task.ConversationID, title)
}

// handleSummarize 长会话的周期性摘要
func (p *Pool) handleSummarize(ctx context.Context, task *queue.Task) error {
	start := time.Now()
	defer func() {
		metrics.JobDuration.WithLabelValues(job.TaskSummarizeConversation).Observe(time.Since(start).Seconds())
	}()

	messages, err := p.convs.Messages(ctx, task.ConversationID, history.DefaultWindowSize)
	if err != nil {
		return fmt.Errorf("worker: load messages: %w", err)
	}
	if len(messages) == 0 {
		return nil
	}

	var transcript strings.Builder
	for _, m := range messages {
		fmt.Fprintf(&transcript, "%s: %s\n", m.Role, m.Content)
	}
	client, err := p.selector.Select(ctx)
	if err != nil {
		return fmt.Errorf("worker: summarize: %w", err)
	}
	prompt := fmt.Sprintf("用三到五句话总结下面的对话，保留用户目标和已确认的事实：\n\n%s", transcript.String())
	summary, err := client.Generate(ctx, prompt, llm.GenerateOptions{Temperature: 0.3, MaxTokens: 300})
	if err != nil {
		return fmt.Errorf("worker: summarize: %w", err)
	}
	return p.convs.SaveSummary(ctx, task.ConversationID, strings.TrimSpace(summary))
}

// contextMessages 组装模型上文：会话摘要 + 窗口内最近消息
func (p *Pool) contextMessages(ctx context.Context, conversationID string) []llm.Message {
	if conversationID == "" {
		return nil
	}
	var messages []llm.Message
	if conv, err := p.convs.Get(ctx, conversationID); err == nil && conv.Summary != "" {
		messages = append(messages, llm.Message{Role: "system", Content: "之前对话的摘要：" + conv.Summary})
	}
	entries, err := p.history.Recent(ctx, conversationID, 0)
	if err != nil {
		p.logger.Warn("历史窗口读取失败", "conversation_id", conversationID, "error", err)
		return messages
	}
	for _, e := range entries {
		messages = append(messages, llm.Message{Role: e.Role, Content: e.Content})
	}
	return messages
}

// saveAssistantMessage 把生成结果同时写入窗口缓存与会话存储
func (p *Pool) saveAssistantMessage(ctx context.Context, conversationID, content string) {
	err := p.history.Append(ctx, conversationID, history.Entry{
		Role:      "assistant",
		Content:   content,
		Timestamp: time.Now(),
	})
	if err != nil {
		p.logger.Warn("历史窗口写入失败", "conversation_id", conversationID, "error", err)
	}
	err = p.convs.AddMessage(ctx, &conversation.Message{
		ConversationID: conversationID,
		Role:           "assistant",
		Content:        content,
	})
	if err != nil {
		p.logger.Warn("助手消息持久化失败", "conversation_id", conversationID, "error", err)
	}
}

func (p *Pool) setState(ctx context.Context, jobID string, fields map[string]any) {
	if err := p.state.SetState(ctx, jobID, fields); err != nil {
		p.logger.Warn("运行态写入失败", "job_id", jobID, "error", err)
	}
}

func (p *Pool) publish(ctx context.Context, e *relay.Event) {
	if p.publisher == nil {
		return
	}
	if err := p.publisher.Publish(ctx, e); err != nil {
		p.logger.Warn("事件发布失败", "job_id", e.JobID, "error", err)
	}
}
