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

// Package metrics 提供全局 Prometheus 指标，API 与 Worker 共用
package metrics

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// DefaultRegistry 自有 Registry，避免与默认全局注册表冲突
var DefaultRegistry = prometheus.NewRegistry()

func init() {
	DefaultRegistry.MustRegister(
		JobDuration, JobTotal,
		RelayDelivered, RelayDropped,
		ToolCallDuration, ToolCallRetries,
		LockWaitSeconds, QueueOps,
		LLMRequestDuration, RateLimitWaitSeconds,
	)
}

// JobDuration Job 执行耗时（秒），按任务类型
var JobDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "synapse_job_duration_seconds",
		Help:    "Job 执行耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"task"},
)

// JobTotal Job 总数（按终态）
var JobTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "synapse_job_total",
		Help: "Job 总数（按终态）",
	},
	[]string{"status"}, // completed | failed
)

// RelayDelivered 成功投递到本进程连接的 relay 事件数
var RelayDelivered = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "synapse_relay_delivered_total",
		Help: "成功投递到本进程连接的 relay 事件数",
	},
)

// RelayDropped 无匹配连接或解析失败而丢弃的 relay 事件数
var RelayDropped = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "synapse_relay_dropped_total",
		Help: "丢弃的 relay 事件数",
	},
	[]string{"reason"}, // no_connection | malformed
)

// ToolCallDuration 工具调用耗时（秒）
var ToolCallDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "synapse_tool_call_duration_seconds",
		Help:    "工具调用耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"tool"},
)

// ToolCallRetries 工具调用重试次数
var ToolCallRetries = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "synapse_tool_call_retries_total",
		Help: "工具调用重试次数",
	},
)

// LockWaitSeconds 获取 job 锁的等待耗时（秒）
var LockWaitSeconds = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "synapse_lock_wait_seconds",
		Help:    "获取 job 锁的等待耗时（秒）",
		Buckets: []float64{.005, .01, .05, .1, .5, 1, 2.5, 5},
	},
)

// QueueOps 队列操作计数
var QueueOps = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "synapse_queue_ops_total",
		Help: "队列操作计数",
	},
	[]string{"queue", "op"}, // op: enqueue | dequeue
)

// LLMRequestDuration LLM 请求耗时（秒），按 provider
var LLMRequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "synapse_llm_request_duration_seconds",
		Help:    "LLM 请求耗时（秒）",
		Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
	},
	[]string{"provider"},
)

// RateLimitWaitSeconds 限流等待耗时（秒），按 provider
var RateLimitWaitSeconds = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "synapse_rate_limit_wait_seconds",
		Help:    "限流等待耗时（秒）",
		Buckets: []float64{.01, .05, .1, .5, 1, 2.5, 5, 10},
	},
	[]string{"provider"},
)

// WritePrometheus 将 Prometheus 文本格式写入 w（供 Hertz /metrics 复用）
func WritePrometheus(w io.Writer) error {
	metrics, err := DefaultRegistry.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.FmtText)
	for _, mf := range metrics {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
