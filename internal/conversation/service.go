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

package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"synapse-platform/internal/job"
	"synapse-platform/internal/model/llm"
	"synapse-platform/internal/relay"
	"synapse-platform/internal/storage/history"
	"synapse-platform/pkg/log"
)

// SummarizeInterval 每累计这么多条消息触发一次后台摘要
const SummarizeInterval = 10

// Submitter 异步任务提交入口（job.Dispatcher 实现）
type Submitter interface {
	Submit(ctx context.Context, req job.SubmitRequest) (*job.Job, error)
	DispatchTitleGeneration(ctx context.Context, conversationID, firstMessage string) error
	DispatchSummarization(ctx context.Context, conversationID, userID string) error
}

// ClientSelector 选择当前可用的 LLM 客户端
type ClientSelector interface {
	Select(ctx context.Context) (llm.Client, error)
}

// ToolRunner 同步工具编排入口（tool.Orchestrator 实现）
type ToolRunner interface {
	Run(ctx context.Context, client llm.Client, history []llm.Message, userMessage string) (string, error)
}

// PostMessageRequest 一次消息提交
type PostMessageRequest struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
	Content        string `json:"content"`
	Mode           string `json:"mode"` // "" 异步 | "tools" 同步工具编排
}

// PostMessageResult 提交结果；异步模式返回 JobID，tools 模式返回 Reply
type PostMessageResult struct {
	JobID string `json:"job_id,omitempty"`
	Reply string `json:"reply,omitempty"`
}

// Service 消息入口：持久化、窗口缓存、后台任务触发与同步工具模式
type Service struct {
	store     Store
	history   history.Cache
	submitter Submitter
	selector  ClientSelector
	tools     ToolRunner
	publisher relay.Publisher
	logger    *log.Logger
}

// NewService 创建消息服务；publisher 可为 nil（无网关事件）
func NewService(store Store, cache history.Cache, submitter Submitter, selector ClientSelector, tools ToolRunner, publisher relay.Publisher, logger *log.Logger) *Service {
	return &Service{
		store:     store,
		history:   cache,
		submitter: submitter,
		selector:  selector,
		tools:     tools,
		publisher: publisher,
		logger:    logger.WithComponent("conversation"),
	}
}

// PostMessage 处理一次消息提交。
// 首条消息触发标题生成；跨过 SummarizeInterval 边界触发后台摘要。
func (s *Service) PostMessage(ctx context.Context, req PostMessageRequest) (*PostMessageResult, error) {
	if req.Content == "" {
		return nil, errors.New("conversation: content required")
	}
	if req.ConversationID == "" || req.UserID == "" {
		return nil, errors.New("conversation: conversation_id and user_id required")
	}

	conv, err := s.store.GetOrCreate(ctx, req.ConversationID, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("conversation: get or create: %w", err)
	}
	countBefore, err := s.store.MessageCount(ctx, conv.ID)
	if err != nil {
		return nil, fmt.Errorf("conversation: count messages: %w", err)
	}

	// 上文在写入本条消息前采集，避免当前消息在提示词里出现两次
	var ctxMessages []llm.Message
	if req.Mode == "tools" {
		ctxMessages = s.contextMessages(ctx, conv)
	}

	userMsg := &Message{ConversationID: conv.ID, Role: "user", Content: req.Content}
	if err := s.store.AddMessage(ctx, userMsg); err != nil {
		return nil, fmt.Errorf("conversation: save message: %w", err)
	}
	s.appendHistory(ctx, conv.ID, "user", req.Content)

	// 首条消息：后台生成标题
	if countBefore == 0 {
		if err := s.submitter.DispatchTitleGeneration(ctx, conv.ID, req.Content); err != nil {
			s.logger.Warn("标题生成任务投递失败", "conversation_id", conv.ID, "error", err)
		}
	}

	var result *PostMessageResult
	if req.Mode == "tools" {
		result, err = s.runTools(ctx, conv, req, ctxMessages)
	} else {
		result, err = s.submitJob(ctx, conv, req)
	}
	if err != nil {
		return nil, err
	}

	// 含本条消息在内每 SummarizeInterval 条触发一次摘要
	if (countBefore+1)%SummarizeInterval == 0 {
		if err := s.submitter.DispatchSummarization(ctx, conv.ID, req.UserID); err != nil {
			s.logger.Warn("摘要任务投递失败", "conversation_id", conv.ID, "error", err)
		}
	}
	return result, nil
}

func (s *Service) submitJob(ctx context.Context, conv *Conversation, req PostMessageRequest) (*PostMessageResult, error) {
	input, _ := json.Marshal(map[string]string{"content": req.Content})
	j, err := s.submitter.Submit(ctx, job.SubmitRequest{
		UserID:         req.UserID,
		ConversationID: conv.ID,
		InputType:      "chat_message",
		InputData:      input,
	})
	if err != nil {
		return nil, err
	}
	return &PostMessageResult{JobID: j.ID}, nil
}

// runTools 同步执行工具编排并立即回复
func (s *Service) runTools(ctx context.Context, conv *Conversation, req PostMessageRequest, ctxMessages []llm.Message) (*PostMessageResult, error) {
	client, err := s.selector.Select(ctx)
	if err != nil {
		if errors.Is(err, llm.ErrNoProvider) {
			return &PostMessageResult{Reply: "No LLM provider is currently available. Please configure an API key."}, nil
		}
		return nil, err
	}

	reply, err := s.tools.Run(ctx, client, ctxMessages, req.Content)
	if err != nil {
		return nil, fmt.Errorf("conversation: tool orchestration: %w", err)
	}

	assistantMsg := &Message{ConversationID: conv.ID, Role: "assistant", Content: reply}
	if err := s.store.AddMessage(ctx, assistantMsg); err != nil {
		s.logger.Error("助手回复持久化失败", "conversation_id", conv.ID, "error", err)
	}
	s.appendHistory(ctx, conv.ID, "assistant", reply)
	s.publishReply(ctx, conv.ID, req.UserID, reply)
	return &PostMessageResult{Reply: reply}, nil
}

// contextMessages 组装模型上文：会话摘要 + 窗口内最近消息
func (s *Service) contextMessages(ctx context.Context, conv *Conversation) []llm.Message {
	var messages []llm.Message
	if conv.Summary != "" {
		messages = append(messages, llm.Message{
			Role:    "system",
			Content: "之前对话的摘要：" + conv.Summary,
		})
	}
	entries, err := s.history.Recent(ctx, conv.ID, 0)
	if err != nil {
		s.logger.Warn("历史窗口读取失败，退化为无上文", "conversation_id", conv.ID, "error", err)
		return messages
	}
	for _, e := range entries {
		messages = append(messages, llm.Message{Role: e.Role, Content: e.Content})
	}
	return messages
}

func (s *Service) appendHistory(ctx context.Context, conversationID, role, content string) {
	err := s.history.Append(ctx, conversationID, history.Entry{
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	})
	if err != nil {
		s.logger.Warn("历史窗口写入失败", "conversation_id", conversationID, "error", err)
	}
}

func (s *Service) publishReply(ctx context.Context, conversationID, userID, reply string) {
	if s.publisher == nil {
		return
	}
	payload, _ := json.Marshal(map[string]string{
		"conversation_id": conversationID,
		"content":         reply,
	})
	err := s.publisher.Publish(ctx, &relay.Event{
		OwnerID: userID,
		Type:    "assistant_message",
		Payload: payload,
	})
	if err != nil {
		s.logger.Warn("回复事件发布失败", "conversation_id", conversationID, "error", err)
	}
}
