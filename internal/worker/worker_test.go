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
	"testing"
	"time"

	"synapse-platform/internal/job"
	"synapse-platform/internal/queue"
)

// 端到端：任务入队 → 消费 → 终态
func TestPool_RunProcessesTask(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := newFixture(t, &fakeSelector{client: &staticLLM{}}, &fakeRunner{reply: "answer"})
	f.createJob(t, "j1")
	_ = f.queue.Enqueue(ctx, job.QueueLight, routeTask("j1", "hello"))

	done := make(chan struct{})
	go func() {
		f.pool.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		got, err := f.jobs.Get(ctx, "j1")
		if err == nil && got.Status.Terminal() {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	got, _ := f.jobs.Get(ctx, "j1")
	if got.Status != job.StatusCompleted {
		t.Fatalf("status = %s, want COMPLETED", got.Status)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pool did not stop on cancel")
	}
}

func TestPool_UnknownTaskTypeIgnored(t *testing.T) {
	f := newFixture(t, &fakeSelector{client: &staticLLM{}}, &fakeRunner{})
	// 不应 panic，也不应影响后续消费
	f.pool.dispatch(context.Background(), &queue.Task{Type: "bogus_task"})
}
