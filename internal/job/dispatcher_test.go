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
	"time"

	"synapse-platform/internal/queue"
	"synapse-platform/pkg/log"
)

func testLogger(t *testing.T) *log.Logger {
	t.Helper()
	l, err := log.NewLogger(nil)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	return l
}

func TestDispatcher_Submit(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	q := queue.NewMemoryQueue()
	d := NewDispatcher(store, q, testLogger(t))

	input := json.RawMessage(`{"content":"hello"}`)
	j, err := d.Submit(ctx, SubmitRequest{
		UserID:         "u1",
		ConversationID: "c1",
		InputType:      "chat",
		InputData:      input,
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if j.ID == "" {
		t.Fatal("job id not assigned")
	}

	stored, err := store.Get(ctx, j.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.Status != StatusPending {
		t.Errorf("status = %s, want PENDING", stored.Status)
	}

	task, err := q.Dequeue(ctx, []string{QueueLight}, time.Second)
	if err != nil || task == nil {
		t.Fatalf("Dequeue: task=%v err=%v", task, err)
	}
	if task.Type != TaskRouteInput {
		t.Errorf("task type = %q, want %q", task.Type, TaskRouteInput)
	}
	if task.JobID != j.ID || task.UserID != "u1" || task.ConversationID != "c1" {
		t.Errorf("task routing fields: %+v", task)
	}
	if string(task.Payload) != string(input) {
		t.Errorf("payload = %s", task.Payload)
	}
}

func TestDispatcher_SubmitValidation(t *testing.T) {
	d := NewDispatcher(NewMemoryStore(), queue.NewMemoryQueue(), testLogger(t))
	if _, err := d.Submit(context.Background(), SubmitRequest{UserID: "u1"}); err == nil {
		t.Error("missing conversation_id accepted")
	}
	if _, err := d.Submit(context.Background(), SubmitRequest{ConversationID: "c1"}); err == nil {
		t.Error("missing user_id accepted")
	}
}

// Enqueue 失败时 Job 已持久化且保持 PENDING
func TestDispatcher_SubmitEnqueueFailure(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	d := NewDispatcher(store, failingQueue{}, testLogger(t))

	j, err := d.Submit(ctx, SubmitRequest{UserID: "u1", ConversationID: "c1", InputType: "chat"})
	if err == nil {
		t.Fatal("expected enqueue error")
	}
	if j == nil {
		t.Fatal("job should be returned even when enqueue fails")
	}
	stored, err := store.Get(ctx, j.ID)
	if err != nil {
		t.Fatalf("job not persisted: %v", err)
	}
	if stored.Status != StatusPending {
		t.Errorf("status = %s, want PENDING", stored.Status)
	}
}

func TestDispatcher_BackgroundTasksUseHeavyQueue(t *testing.T) {
	ctx := context.Background()
	q := queue.NewMemoryQueue()
	d := NewDispatcher(NewMemoryStore(), q, testLogger(t))

	if err := d.DispatchTitleGeneration(ctx, "c1", "first message"); err != nil {
		t.Fatalf("DispatchTitleGeneration: %v", err)
	}
	if err := d.DispatchSummarization(ctx, "c1", "u1"); err != nil {
		t.Fatalf("DispatchSummarization: %v", err)
	}
	if q.Len(QueueHeavy) != 2 {
		t.Errorf("cpu_heavy len = %d, want 2", q.Len(QueueHeavy))
	}
	if q.Len(QueueLight) != 0 {
		t.Errorf("cpu_light len = %d, want 0", q.Len(QueueLight))
	}

	title, _ := q.Dequeue(ctx, []string{QueueHeavy}, time.Second)
	if title.Type != TaskGenerateTitle || title.ConversationID != "c1" {
		t.Errorf("title task: %+v", title)
	}
	sum, _ := q.Dequeue(ctx, []string{QueueHeavy}, time.Second)
	if sum.Type != TaskSummarizeConversation || sum.UserID != "u1" {
		t.Errorf("summarize task: %+v", sum)
	}
}

func TestDispatcher_ResumeClarification(t *testing.T) {
	ctx := context.Background()
	q := queue.NewMemoryQueue()
	d := NewDispatcher(NewMemoryStore(), q, testLogger(t))

	if err := d.ResumeClarification(ctx, "job-9", "u1", "the second one"); err != nil {
		t.Fatalf("ResumeClarification: %v", err)
	}
	task, _ := q.Dequeue(ctx, []string{QueueLight}, time.Second)
	if task == nil || task.Type != TaskResumeClarification || task.JobID != "job-9" {
		t.Fatalf("resume task: %+v", task)
	}
	var payload map[string]string
	if err := json.Unmarshal(task.Payload, &payload); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if payload["response"] != "the second one" {
		t.Errorf("response = %q", payload["response"])
	}
}

type failingQueue struct{}

func (failingQueue) Enqueue(ctx context.Context, queueName string, task *queue.Task) error {
	return errors.New("broker down")
}

func (failingQueue) Dequeue(ctx context.Context, queueNames []string, timeout time.Duration) (*queue.Task, error) {
	return nil, nil
}

func (failingQueue) Close() error { return nil }
