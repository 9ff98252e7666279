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
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore 内存实现，开发与测试用
type MemoryStore struct {
	mu            sync.RWMutex
	conversations map[string]*Conversation
	messages      map[string][]*Message
}

// NewMemoryStore 创建内存会话存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		conversations: make(map[string]*Conversation),
		messages:      make(map[string][]*Message),
	}
}

func (s *MemoryStore) GetOrCreate(ctx context.Context, conversationID, userID string) (*Conversation, error) {
	if conversationID == "" {
		return nil, errors.New("conversation: id required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.conversations[conversationID]; ok {
		cp := *c
		return &cp, nil
	}
	now := time.Now()
	c := &Conversation{ID: conversationID, UserID: userID, CreatedAt: now, UpdatedAt: now}
	s.conversations[conversationID] = c
	cp := *c
	return &cp, nil
}

func (s *MemoryStore) Get(ctx context.Context, conversationID string) (*Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.conversations[conversationID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *MemoryStore) List(ctx context.Context, userID string) ([]*Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Conversation
	for _, c := range s.conversations {
		if c.UserID == userID {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (s *MemoryStore) Rename(ctx context.Context, conversationID, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[conversationID]
	if !ok {
		return ErrNotFound
	}
	c.Title = title
	c.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) SaveSummary(ctx context.Context, conversationID, summary string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[conversationID]
	if !ok {
		return ErrNotFound
	}
	c.Summary = summary
	c.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) AddMessage(ctx context.Context, m *Message) error {
	if m == nil || m.ConversationID == "" {
		return errors.New("conversation: message conversation_id required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	cp := *m
	s.messages[m.ConversationID] = append(s.messages[m.ConversationID], &cp)
	if c, ok := s.conversations[m.ConversationID]; ok {
		c.UpdatedAt = m.CreatedAt
	}
	return nil
}

func (s *MemoryStore) MessageCount(ctx context.Context, conversationID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages[conversationID]), nil
}

func (s *MemoryStore) Messages(ctx context.Context, conversationID string, limit int) ([]*Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.messages[conversationID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]*Message, len(msgs))
	for i, m := range msgs {
		cp := *m
		out[i] = &cp
	}
	return out, nil
}

func (s *MemoryStore) Close() {}
