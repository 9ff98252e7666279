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

// Package worker 队列消费者：取任务、持 job 锁执行状态转移、发布结果事件。
package worker

import (
	"context"
	"sync"
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

const dequeueTimeout = 5 * time.Second

// Selector 选择当前可用的 LLM 客户端
type Selector interface {
	Select(ctx context.Context) (llm.Client, error)
}

// ToolRunner 工具编排入口（tool.Orchestrator 实现）
type ToolRunner interface {
	Run(ctx context.Context, client llm.Client, history []llm.Message, userMessage string) (string, error)
}

// Options Worker 池配置
type Options struct {
	Concurrency int           // 消费者 goroutine 数量，<=0 默认 2
	Queues      []string      // 消费的队列，空默认 cpu_light + cpu_heavy
	HoldTimeout time.Duration // job 锁持有超时，<=0 用 lock 包默认
	WaitTimeout time.Duration // job 锁等待超时，<=0 用 lock 包默认
}

// Pool Worker 池
type Pool struct {
	queue     queue.Queue
	jobs      job.Store
	locker    lock.Locker
	state     jobstate.Store
	history   history.Cache
	convs     conversation.Store
	selector  Selector
	tools     ToolRunner
	publisher relay.Publisher
	logger    *log.Logger
	opts      Options
}

// NewPool 创建 Worker 池
func NewPool(q queue.Queue, jobs job.Store, locker lock.Locker, state jobstate.Store,
	cache history.Cache, convs conversation.Store, selector Selector, tools ToolRunner,
	publisher relay.Publisher, logger *log.Logger, opts Options) *Pool {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 2
	}
	if len(opts.Queues) == 0 {
		opts.Queues = []string{job.QueueLight, job.QueueHeavy}
	}
	return &Pool{
		queue:     q,
		jobs:      jobs,
		locker:    locker,
		state:     state,
		history:   cache,
		convs:     convs,
		selector:  selector,
		tools:     tools,
		publisher: publisher,
		logger:    logger.WithComponent("worker"),
		opts:      opts,
	}
}

// Run 阻塞运行所有消费者直到 ctx 取消
func (p *Pool) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < p.opts.Concurrency; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.consume(ctx, id)
		}(i)
	}
	wg.Wait()
}

func (p *Pool) consume(ctx context.Context, id int) {
	p.logger.Info("worker started", "consumer", id, "queues", p.opts.Queues)
	for {
		if ctx.Err() != nil {
			return
		}
		task, err := p.queue.Dequeue(ctx, p.opts.Queues, dequeueTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Error("队列读取失败", "error", err)
			time.Sleep(time.Second)
			continue
		}
		if task == nil {
			continue
		}
		p.dispatch(ctx, task)
	}
}

// dispatch 按任务类型路由；单个任务失败不影响消费循环
func (p *Pool) dispatch(ctx context.Context, task *queue.Task) {
	start := time.Now()
	var err error
	switch task.Type {
	case job.TaskRouteInput:
		err = p.handleRouteInput(ctx, task)
	case job.TaskResumeClarification:
		err = p.handleResumeClarification(ctx, task)
	case job.TaskGenerateTitle:
		err = p.handleGenerateTitle(ctx, task)
	case job.TaskSummarizeConversation:
		err = p.handleSummarize(ctx, task)
	default:
		p.logger.Warn("未知任务类型，丢弃", "type", task.Type, "job_id", task.JobID)
		return
	}
	elapsed := time.Since(start)
	if err != nil {
		p.logger.Error("任务执行失败", "type", task.Type, "job_id", task.JobID, "elapsed", elapsed, "error", err)
		return
	}
	p.logger.Info("task done", "type", task.Type, "job_id", task.JobID, "elapsed", elapsed)
}
