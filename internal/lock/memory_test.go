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
	"errors"
	"testing"
	"time"
)

func TestMemoryLocker_MutualExclusion(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLocker()

	h, err := l.Acquire(ctx, "job-1", time.Minute, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("first Acquire: %v", err)
	}

	if _, err := l.Acquire(ctx, "job-1", time.Minute, 50*time.Millisecond); !errors.Is(err, ErrBusy) {
		t.Fatalf("second Acquire: err = %v, want ErrBusy", err)
	}

	if err := h.Release(ctx); err != nil {
		t.Fatalf("Release: %v", err)
	}
	h2, err := l.Acquire(ctx, "job-1", time.Minute, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}
	_ = h2.Release(ctx)
}

func TestMemoryLocker_IndependentJobs(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLocker()

	h1, err := l.Acquire(ctx, "job-1", time.Minute, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("job-1: %v", err)
	}
	defer h1.Release(ctx)

	h2, err := l.Acquire(ctx, "job-2", time.Minute, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("job-2 blocked by job-1 lock: %v", err)
	}
	_ = h2.Release(ctx)
}

func TestMemoryLocker_HoldTimeoutExpires(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLocker()

	if _, err := l.Acquire(ctx, "job-1", 30*time.Millisecond, 50*time.Millisecond); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	// 持有者不释放，等待其过期
	h, err := l.Acquire(ctx, "job-1", time.Minute, 500*time.Millisecond)
	if err != nil {
		t.Fatalf("Acquire after expiry: %v", err)
	}
	_ = h.Release(ctx)
}

// 过期后 Release 不得误删新持有者的锁
func TestMemoryLocker_StaleReleaseIgnored(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLocker()

	stale, err := l.Acquire(ctx, "job-1", 20*time.Millisecond, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	time.Sleep(30 * time.Millisecond)

	fresh, err := l.Acquire(ctx, "job-1", time.Minute, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("Acquire after expiry: %v", err)
	}
	_ = stale.Release(ctx)

	if _, err := l.Acquire(ctx, "job-1", time.Minute, 50*time.Millisecond); !errors.Is(err, ErrBusy) {
		t.Errorf("stale release removed fresh lock: err = %v", err)
	}
	_ = fresh.Release(ctx)
}

func TestMemoryLocker_WaitsForRelease(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLocker()

	h, _ := l.Acquire(ctx, "job-1", time.Minute, 50*time.Millisecond)
	go func() {
		time.Sleep(30 * time.Millisecond)
		_ = h.Release(context.Background())
	}()

	h2, err := l.Acquire(ctx, "job-1", time.Minute, time.Second)
	if err != nil {
		t.Fatalf("waiting Acquire: %v", err)
	}
	_ = h2.Release(ctx)
}

func TestMemoryLocker_ContextCancel(t *testing.T) {
	l := NewMemoryLocker()
	h, _ := l.Acquire(context.Background(), "job-1", time.Minute, 50*time.Millisecond)
	defer h.Release(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	if _, err := l.Acquire(ctx, "job-1", time.Minute, 5*time.Second); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
