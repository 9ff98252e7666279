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
	"errors"
	"testing"
)

func TestMemoryStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	defer s.Close()

	j := &Job{ID: "job-1", UserID: "u1", ConversationID: "c1", Type: "chat"}
	if err := s.Create(ctx, j); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := s.Get(ctx, "job-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != StatusPending {
		t.Errorf("new job status = %s, want PENDING", got.Status)
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}

	if _, err := s.UpdateStatus(ctx, "job-1", StatusProcessing, nil, ""); err != nil {
		t.Fatalf("to PROCESSING: %v", err)
	}
	final, err := s.UpdateStatus(ctx, "job-1", StatusCompleted, json.RawMessage(`{"text":"hi"}`), "")
	if err != nil {
		t.Fatalf("to COMPLETED: %v", err)
	}
	if final.CompletedAt.IsZero() {
		t.Error("CompletedAt not set on terminal status")
	}
	if string(final.ResultData) != `{"text":"hi"}` {
		t.Errorf("ResultData = %s", final.ResultData)
	}
}

func TestMemoryStore_GetUnknown(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()

	if _, err := s.Get(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get unknown: err = %v, want ErrNotFound", err)
	}
	if _, err := s.UpdateStatus(context.Background(), "nope", StatusProcessing, nil, ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateStatus unknown: err = %v, want ErrNotFound", err)
	}
	if err := s.IncrementRetry(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("IncrementRetry unknown: err = %v, want ErrNotFound", err)
	}
}

func TestMemoryStore_IllegalTransitionRejected(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	defer s.Close()

	_ = s.Create(ctx, &Job{ID: "job-1", UserID: "u1"})
	if _, err := s.UpdateStatus(ctx, "job-1", StatusCompleted, nil, ""); err == nil {
		t.Fatal("PENDING -> COMPLETED accepted")
	}
	got, _ := s.Get(ctx, "job-1")
	if got.Status != StatusPending {
		t.Errorf("status mutated to %s after rejected transition", got.Status)
	}
}

func TestMemoryStore_DuplicateCreate(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	defer s.Close()

	_ = s.Create(ctx, &Job{ID: "job-1"})
	if err := s.Create(ctx, &Job{ID: "job-1"}); err == nil {
		t.Error("duplicate Create accepted")
	}
}

func TestMemoryStore_IncrementRetry(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	defer s.Close()

	_ = s.Create(ctx, &Job{ID: "job-1"})
	_ = s.IncrementRetry(ctx, "job-1")
	_ = s.IncrementRetry(ctx, "job-1")
	got, _ := s.Get(ctx, "job-1")
	if got.RetryCount != 2 {
		t.Errorf("RetryCount = %d, want 2", got.RetryCount)
	}
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	defer s.Close()

	_ = s.Create(ctx, &Job{ID: "job-1"})
	got, _ := s.Get(ctx, "job-1")
	got.Status = StatusFailed

	again, _ := s.Get(ctx, "job-1")
	if again.Status != StatusPending {
		t.Error("Get returned a shared pointer")
	}
}
