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

// Package conversation 会话与消息的持久化及消息入口服务
package conversation

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound 会话或消息不存在
var ErrNotFound = errors.New("conversation: not found")

// Conversation 会话
type Conversation struct {
	ID        string
	UserID    string
	Title     string
	Summary   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Message 会话中的一条消息
type Message struct {
	ID             string
	ConversationID string
	Role           string // user | assistant | system
	Content        string
	CreatedAt      time.Time
}

// Store 会话持久化存储
type Store interface {
	// GetOrCreate 取会话，不存在则创建
	GetOrCreate(ctx context.Context, conversationID, userID string) (*Conversation, error)
	// Get 按 ID 查询；不存在返回 ErrNotFound
	Get(ctx context.Context, conversationID string) (*Conversation, error)
	// List 某用户的会话，按更新时间倒序
	List(ctx context.Context, userID string) ([]*Conversation, error)
	// Rename 更新会话标题
	Rename(ctx context.Context, conversationID, title string) error
	// SaveSummary 更新会话摘要
	SaveSummary(ctx context.Context, conversationID, summary string) error
	// AddMessage 追加消息
	AddMessage(ctx context.Context, m *Message) error
	// MessageCount 会话内消息总数
	MessageCount(ctx context.Context, conversationID string) (int, error)
	// Messages 按时间正序返回最近 limit 条消息；limit<=0 不限制
	Messages(ctx context.Context, conversationID string, limit int) ([]*Message, error)
	// Close 释放底层连接
	Close()
}
