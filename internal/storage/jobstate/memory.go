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

package jobstate

import (
	"context"
	"errors"
	"sync"
	"time"
)

// MemoryStore 内存实现，开发与测试用
type MemoryStore struct {
	mu             sync.RWMutex
	states         map[string]map[string]any
	clarifications map[string]clarificationEntry
}

type clarificationEntry struct {
	c       Clarification
	expires time.Time
}

// NewMemoryStore 创建内存易失态存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		states:         make(map[string]map[string]any),
		clarifications: make(map[string]clarificationEntry),
	}
}

func (s *MemoryStore) SetState(ctx context.Context, jobID string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.states[jobID]
	if !ok {
		state = make(map[string]any, len(fields))
		s.states[jobID] = state
	}
	for k, v := range fields {
		state[k] = v
	}
	return nil
}

func (s *MemoryStore) GetState(ctx context.Context, jobID string) (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.states[jobID]
	if !ok {
		return nil, ErrNotFound
	}
	out := make(map[string]any, len(state))
	for k, v := range state {
		out[k] = v
	}
	return out, nil
}

func (s *MemoryStore) SaveClarification(ctx context.Context, c *Clarification) error {
	if c == nil || c.JobID == "" {
		return errors.New("jobstate: clarification job_id required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clarifications[c.JobID] = clarificationEntry{c: *c, expires: time.Now().Add(ClarificationTTL)}
	return nil
}

func (s *MemoryStore) GetClarification(ctx context.Context, jobID string) (*Clarification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.clarifications[jobID]
	if !ok || time.Now().After(e.expires) {
		return nil, ErrNotFound
	}
	cp := e.c
	return &cp, nil
}

func (s *MemoryStore) ConsumeClarification(ctx context.Context, jobID string) (*Clarification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.clarifications[jobID]
	if !ok || time.Now().After(e.expires) {
		delete(s.clarifications, jobID)
		return nil, ErrNotFound
	}
	delete(s.clarifications, jobID)
	cp := e.c
	return &cp, nil
}
