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
	"strings"
	"testing"
	"time"

	"synapse-platform/internal/conversation"
	"synapse-platform/internal/job"
	"synapse-platform/internal/lock"
	"synapse-platform/internal/model/llm"
	"synapse-platform/internal/queue"
	"synapse-platform/internal/relay"
	"synapse-platform/internal/storage/history"
	"synapse-platform/internal/storage/jobstate"
	"synapse-platform/pkg/log"
)

type fakeSelector struct {
	client llm.Client
	err    error
}

func (f *fakeSelector) Select(ctx context.Context) (llm.Client, error) {
	return f.client, f.err
}

// fakeRunner 工具编排桩：按输入返回预置回复
type fakeRunner struct {
	reply string
	err   error
	seen  []string
}

func (f *fakeRunner) Run(ctx context.Context, client llm.Client, hist []llm.Message, userMessage string) (string, error) {
	f.seen = append(f.seen, userMessage)
	return f.reply, f.err
}

type staticLLM struct {
	generated string
}

func (s *staticLLM) Generate(ctx context.Context, prompt string, o llm.GenerateOptions) (string, error) {
	return s.generated, nil
}
func (s *staticLLM) Chat(ctx context.Context, m []llm.Message, o llm.GenerateOptions) (string, error) {
	return s.generated, nil
}
func (s *staticLLM) Model() string    { return "static" }
func (s *staticLLM) Provider() string { return "test" }

type capturePublisher struct {
	events []*relay.Event
}

func (c *capturePublisher) Publish(ctx context.Context, e *relay.Event) error {
	c.events = append(c.events, e)
	return nil
}

type fixture struct {
	pool      *Pool
	jobs      *job.MemoryStore
	queue     *queue.MemoryQueue
	state     *jobstate.MemoryStore
	convs     *conversation.MemoryStore
	cache     *history.MemoryCache
	publisher *capturePublisher
}

func newFixture(t *testing.T, selector Selector, runner ToolRunner) *fixture {
	t.Helper()
	logger, err := log.NewLogger(nil)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	f := &fixture{
		jobs:      job.NewMemoryStore(),
		queue:     queue.NewMemoryQueue(),
		state:     jobstate.NewMemoryStore(),
		convs:     conversation.NewMemoryStore(),
		cache:     history.NewMemoryCache(50),
		publisher: &capturePublisher{},
	}
	f.pool = NewPool(f.queue, f.jobs, lock.NewMemoryLocker(), f.state, f.cache, f.convs,
		selector, runner, f.publisher, logger, Options{})
	return f
}

func (f *fixture) createJob(t *testing.T, id string) *job.Job {
	t.Helper()
	j := &job.Job{ID: id, UserID: "u1", ConversationID: "c1", Type: "chat_message"}
	if err := f.jobs.Create(context.Background(), j); err != nil {
		t.Fatalf("Create: %v", err)
	}
	_, err := f.convs.GetOrCreate(context.Background(), "c1", "u1")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	return j
}

func routeTask(jobID, content string) *queue.Task {
	payload, _ := json.Marshal(map[string]string{"content": content})
	return &queue.Task{Type: job.TaskRouteInput, JobID: jobID, UserID: "u1", ConversationID: "c1", Payload: payload}
}

func TestHandleRouteInput_Completes(t *testing.T) {
	ctx := context.Background()
	runner := &fakeRunner{reply: "here is the answer"}
	f := newFixture(t, &fakeSelector{client: &staticLLM{}}, runner)
	f.createJob(t, "j1")

	if err := f.pool.handleRouteInput(ctx, routeTask("j1", "what is go?")); err != nil {
		t.Fatalf("handleRouteInput: %v", err)
	}

	got, _ := f.jobs.Get(ctx, "j1")
	if got.Status != job.StatusCompleted {
		t.Fatalf("status = %s, want COMPLETED", got.Status)
	}
	var result map[string]string
	_ = json.Unmarshal(got.ResultData, &result)
	if result["text"] != "here is the answer" {
		t.Errorf("result = %v", result)
	}
	if got.StartedAt.IsZero() || got.CompletedAt.IsZero() {
		t.Error("timestamps not set")
	}

	// 结果事件发给任务属主
	if len(f.publisher.events) != 1 || f.publisher.events[0].OwnerID != "u1" {
		t.Fatalf("events: %+v", f.publisher.events)
	}
	if f.publisher.events[0].Type != "job_update" {
		t.Errorf("event type = %q", f.publisher.events[0].Type)
	}

	// 助手回复进入会话与窗口
	count, _ := f.convs.MessageCount(ctx, "c1")
	if count != 1 {
		t.Errorf("conversation messages = %d, want 1", count)
	}
	entries, _ := f.cache.Recent(ctx, "c1", 0)
	if len(entries) != 1 || entries[0].Role != "assistant" {
		t.Errorf("history window: %v", entries)
	}
}

func TestHandleRouteInput_ClarificationPause(t *testing.T) {
	ctx := context.Background()
	runner := &fakeRunner{reply: `{"tool": "request_clarification", "arguments": {"question": "which city?", "options": ["Tokyo", "Kyoto"]}}`}
	f := newFixture(t, &fakeSelector{client: &staticLLM{}}, runner)
	f.createJob(t, "j1")

	if err := f.pool.handleRouteInput(ctx, routeTask("j1", "weather?")); err != nil {
		t.Fatalf("handleRouteInput: %v", err)
	}

	got, _ := f.jobs.Get(ctx, "j1")
	if got.Status != job.StatusAwaitingClarification {
		t.Fatalf("status = %s, want AWAITING_CLARIFICATION", got.Status)
	}
	if !got.CompletedAt.IsZero() {
		t.Error("CompletedAt set on non-terminal status")
	}

	c, err := f.state.GetClarification(ctx, "j1")
	if err != nil {
		t.Fatalf("clarification not saved: %v", err)
	}
	if c.Question != "which city?" {
		t.Errorf("question = %q", c.Question)
	}
	// 候选项按模型给出的顺序保存
	if len(c.Options) != 2 || c.Options[0] != "Tokyo" || c.Options[1] != "Kyoto" {
		t.Errorf("options = %v", c.Options)
	}
	if len(f.publisher.events) != 1 || f.publisher.events[0].Type != "clarification_request" {
		t.Fatalf("events: %+v", f.publisher.events)
	}
	// 下发给客户端的事件带上问题与候选项
	var sent struct {
		Question string   `json:"question"`
		Options  []string `json:"options"`
	}
	if err := json.Unmarshal(f.publisher.events[0].Payload, &sent); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if sent.Question != "which city?" || len(sent.Options) != 2 || sent.Options[1] != "Kyoto" {
		t.Errorf("payload = %+v", sent)
	}
}

// 完整澄清往返：暂停 → 恢复 → 完成；StartedAt 只记一次
func TestClarificationRoundTrip(t *testing.T) {
	ctx := context.Background()
	runner := &fakeRunner{reply: `{"tool": "request_clarification", "arguments": {"question": "which?"}}`}
	f := newFixture(t, &fakeSelector{client: &staticLLM{}}, runner)
	f.createJob(t, "j1")

	if err := f.pool.handleRouteInput(ctx, routeTask("j1", "do the thing")); err != nil {
		t.Fatalf("route: %v", err)
	}
	paused, _ := f.jobs.Get(ctx, "j1")
	startedAt := paused.StartedAt

	runner.reply = "done with your answer"
	payload, _ := json.Marshal(map[string]string{"response": "the second one"})
	task := &queue.Task{Type: job.TaskResumeClarification, JobID: "j1", UserID: "u1", Payload: payload}
	if err := f.pool.handleResumeClarification(ctx, task); err != nil {
		t.Fatalf("resume: %v", err)
	}

	got, _ := f.jobs.Get(ctx, "j1")
	if got.Status != job.StatusCompleted {
		t.Fatalf("status = %s, want COMPLETED", got.Status)
	}
	if !got.StartedAt.Equal(startedAt) {
		t.Error("StartedAt changed on resume")
	}
	// 恢复输入带上原始问题与用户回答
	last := runner.seen[len(runner.seen)-1]
	if !strings.Contains(last, "which?") || !strings.Contains(last, "the second one") {
		t.Errorf("resume input = %q", last)
	}
	// 澄清请求已消费
	if _, err := f.state.GetClarification(ctx, "j1"); !errors.Is(err, jobstate.ErrNotFound) {
		t.Error("clarification not consumed")
	}
}

func TestHandleResumeClarification_Expired(t *testing.T) {
	ctx := context.Background()
	runner := &fakeRunner{reply: `{"tool": "request_clarification", "arguments": {"question": "q"}}`}
	f := newFixture(t, &fakeSelector{client: &staticLLM{}}, runner)
	f.createJob(t, "j1")

	if err := f.pool.handleRouteInput(ctx, routeTask("j1", "go")); err != nil {
		t.Fatalf("route: %v", err)
	}
	// 模拟 TTL 过期
	if _, err := f.state.ConsumeClarification(ctx, "j1"); err != nil {
		t.Fatalf("consume: %v", err)
	}

	task := &queue.Task{Type: job.TaskResumeClarification, JobID: "j1", UserID: "u1"}
	if err := f.pool.handleResumeClarification(ctx, task); err != nil {
		t.Fatalf("resume: %v", err)
	}
	got, _ := f.jobs.Get(ctx, "j1")
	if got.Status != job.StatusFailed {
		t.Fatalf("status = %s, want FAILED", got.Status)
	}
	if got.ErrorMessage != "clarification request expired" {
		t.Errorf("error = %q", got.ErrorMessage)
	}
	if got.ResultData != nil {
		t.Error("ResultData set on FAILED")
	}
}

func TestHandleRouteInput_NoProviderFails(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &fakeSelector{err: llm.ErrNoProvider}, &fakeRunner{})
	f.createJob(t, "j1")

	if err := f.pool.handleRouteInput(ctx, routeTask("j1", "hello")); err != nil {
		t.Fatalf("handleRouteInput: %v", err)
	}
	got, _ := f.jobs.Get(ctx, "j1")
	if got.Status != job.StatusFailed {
		t.Fatalf("status = %s, want FAILED", got.Status)
	}
	if got.ErrorMessage == "" {
		t.Error("error message empty")
	}
}

func TestHandleRouteInput_BadPayloadFails(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &fakeSelector{client: &staticLLM{}}, &fakeRunner{reply: "x"})
	f.createJob(t, "j1")

	task := &queue.Task{Type: job.TaskRouteInput, JobID: "j1", UserID: "u1", Payload: json.RawMessage(`{`)}
	if err := f.pool.handleRouteInput(ctx, task); err != nil {
		t.Fatalf("handleRouteInput: %v", err)
	}
	got, _ := f.jobs.Get(ctx, "j1")
	if got.Status != job.StatusFailed {
		t.Errorf("status = %s, want FAILED", got.Status)
	}
}

func TestHandleRouteInput_UnknownJob(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &fakeSelector{client: &staticLLM{}}, &fakeRunner{reply: "x"})

	if err := f.pool.handleRouteInput(ctx, routeTask("ghost", "hello")); err == nil {
		t.Fatal("expected error for unknown job")
	}
}

func TestHandleGenerateTitle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &fakeSelector{client: &staticLLM{generated: `"东京旅行计划"`}}, &fakeRunner{})
	_, _ = f.convs.GetOrCreate(ctx, "c1", "u1")

	payload, _ := json.Marshal(map[string]string{"content": "帮我规划东京的行程"})
	task := &queue.Task{Type: job.TaskGenerateTitle, ConversationID: "c1", Payload: payload}
	if err := f.pool.handleGenerateTitle(ctx, task); err != nil {
		t.Fatalf("handleGenerateTitle: %v", err)
	}
	conv, _ := f.convs.Get(ctx, "c1")
	if conv.Title != "东京旅行计划" {
		t.Errorf("title = %q", conv.Title)
	}
}

func TestHandleSummarize(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &fakeSelector{client: &staticLLM{generated: "用户在规划旅行。"}}, &fakeRunner{})
	_, _ = f.convs.GetOrCreate(ctx, "c1", "u1")
	for i := 0; i < 3; i++ {
		_ = f.convs.AddMessage(ctx, &conversation.Message{ConversationID: "c1", Role: "user", Content: "msg"})
	}

	task := &queue.Task{Type: job.TaskSummarizeConversation, ConversationID: "c1", UserID: "u1"}
	if err := f.pool.handleSummarize(ctx, task); err != nil {
		t.Fatalf("handleSummarize: %v", err)
	}
	conv, _ := f.convs.Get(ctx, "c1")
	if conv.Summary != "用户在规划旅行。" {
		t.Errorf("summary = %q", conv.Summary)
	}
}

func TestHandleSummarize_EmptyConversation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &fakeSelector{client: &staticLLM{}}, &fakeRunner{})
	_, _ = f.convs.GetOrCreate(ctx, "c1", "u1")

	task := &queue.Task{Type: job.TaskSummarizeConversation, ConversationID: "c1"}
	if err := f.pool.handleSummarize(ctx, task); err != nil {
		t.Fatalf("handleSummarize: %v", err)
	}
}

// 锁被占用时任务放回队列而不是丢失
func TestHandleRouteInput_LockBusyRequeues(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &fakeSelector{client: &staticLLM{}}, &fakeRunner{reply: "x"})
	f.createJob(t, "j1")

	locker := lock.NewMemoryLocker()
	f.pool.locker = locker
	h, _ := locker.Acquire(ctx, "j1", 0, 0)
	defer h.Release(ctx)
	f.pool.opts.WaitTimeout = 20 * time.Millisecond

	if err := f.pool.handleRouteInput(ctx, routeTask("j1", "hello")); err != nil {
		t.Fatalf("handleRouteInput: %v", err)
	}
	if f.queue.Len(job.QueueLight) != 1 {
		t.Error("task not requeued while lock busy")
	}
	got, _ := f.jobs.Get(ctx, "j1")
	if got.Status != job.StatusPending {
		t.Errorf("status = %s, want PENDING", got.Status)
	}
}
