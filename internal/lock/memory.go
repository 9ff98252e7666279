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

package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryLocker 单进程内存锁，开发与测试用；持有超时语义与 RedisLocker 一致
type MemoryLocker struct {
	mu    sync.Mutex
	locks map[string]memoryEntry
}

type memoryEntry struct {
	token   string
	expires time.Time
}

// NewMemoryLocker 创建内存锁
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{locks: make(map[string]memoryEntry)}
}

func (l *MemoryLocker) Acquire(ctx context.Context, jobID string, holdTimeout, waitTimeout time.Duration) (Handle, error) {
	if holdTimeout <= 0 {
		holdTimeout = DefaultHoldTimeout
	}
	if waitTimeout <= 0 {
		waitTimeout = DefaultWaitTimeout
	}

	token := uuid.NewString()
	deadline := time.Now().Add(waitTimeout)

	for {
		if l.tryAcquire(jobID, token, holdTimeout) {
			return &memoryHandle{locker: l, jobID: jobID, token: token}, nil
		}
		if time.Now().After(deadline) {
			return nil, ErrBusy
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func (l *MemoryLocker) tryAcquire(jobID, token string, hold time.Duration) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	if e, ok := l.locks[jobID]; ok && e.expires.After(now) {
		return false
	}
	l.locks[jobID] = memoryEntry{token: token, expires: now.Add(hold)}
	return true
}

func (l *MemoryLocker) release(jobID, token string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.locks[jobID]; ok && e.token == token {
		delete(l.locks, jobID)
	}
}

type memoryHandle struct {
	locker *MemoryLocker
	jobID  string
	token  string
}

func (h *memoryHandle) Release(ctx context.Context) error {
	h.locker.release(h.jobID, h.token)
	return nil
}
