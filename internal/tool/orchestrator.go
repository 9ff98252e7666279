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

package tool

import (
	"context"
	"fmt"
	"strings"
	"time"

	"synapse-platform/internal/model/llm"
	"synapse-platform/pkg/log"
	"synapse-platform/pkg/metrics"
)

const (
	// DefaultExtraRetries 工具执行失败后的额外重试次数
	DefaultExtraRetries = 2
	// DefaultRetryDelay 重试间隔
	DefaultRetryDelay = 1 * time.Second
)

const systemPromptTemplate = `你是一个可以调用工具的助手。可用工具：

%s
需要调用工具时，回复一个 JSON 对象：{"tool": "工具名", "arguments": {参数}}。
可以在一次回复中请求多个工具。不需要工具时直接用自然语言回答。`

// Orchestrator 工具编排循环：模型选择工具 → 顺序执行 → 汇总成最终回复。
// 无论中间失败多少次，最终总是返回一段文本。
type Orchestrator struct {
	servers      []Server
	extraRetries int
	retryDelay   time.Duration
	logger       *log.Logger
}

// NewOrchestrator 创建编排器；retries<0 或 delay<=0 时用默认值
func NewOrchestrator(servers []Server, extraRetries int, retryDelay time.Duration, logger *log.Logger) *Orchestrator {
	if extraRetries < 0 {
		extraRetries = DefaultExtraRetries
	}
	if retryDelay <= 0 {
		retryDelay = DefaultRetryDelay
	}
	return &Orchestrator{
		servers:      servers,
		extraRetries: extraRetries,
		retryDelay:   retryDelay,
		logger:       logger.WithComponent("tool"),
	}
}

// Run 执行一轮工具编排。history 为会话上文，userMessage 为本轮输入。
func (o *Orchestrator) Run(ctx context.Context, client llm.Client, history []llm.Message, userMessage string) (string, error) {
	tools, owners := o.collectTools(ctx)

	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{
		Role:    "system",
		Content: fmt.Sprintf(systemPromptTemplate, FormatForLLM(tools)),
	})
	messages = append(messages, history...)
	messages = append(messages, llm.Message{Role: "user", Content: userMessage})

	reply, err := client.Chat(ctx, messages, llm.GenerateOptions{Temperature: 0.7})
	if err != nil {
		return "", fmt.Errorf("tool: 模型调用失败: %w", err)
	}

	calls := ExtractCalls(reply)
	if len(calls) == 0 {
		return reply, nil
	}

	results := make([]string, 0, len(calls))
	for _, call := range calls {
		results = append(results, o.execute(ctx, owners, call))
	}
	return o.summarize(ctx, client, userMessage, calls, results), nil
}

// collectTools 汇总所有服务器的工具清单；单个服务器失败只记日志。
// 同名工具先上报者优先。
func (o *Orchestrator) collectTools(ctx context.Context) ([]Tool, map[string]Server) {
	var tools []Tool
	owners := make(map[string]Server)
	for _, s := range o.servers {
		listed, err := s.ListTools(ctx)
		if err != nil {
			o.logger.Warn("工具服务器清单拉取失败", "server", s.Name(), "error", err)
			continue
		}
		for _, t := range listed {
			if _, taken := owners[t.Name]; taken {
				continue
			}
			owners[t.Name] = s
			tools = append(tools, t)
		}
	}
	return tools, owners
}

// execute 执行一次调用并返回结果文本；失败结果也是文本，不中断后续调用
func (o *Orchestrator) execute(ctx context.Context, owners map[string]Server, call Call) string {
	server := owners[call.Tool]
	if server == nil {
		return fmt.Sprintf("No server found with tool: %s", call.Tool)
	}

	var lastErr error
	for attempt := 0; attempt <= o.extraRetries; attempt++ {
		if attempt > 0 {
			metrics.ToolCallRetries.Inc()
			select {
			case <-ctx.Done():
				return fmt.Sprintf("Tool %s failed: %v", call.Tool, ctx.Err())
			case <-time.After(o.retryDelay):
			}
		}
		start := time.Now()
		content, err := server.CallTool(ctx, call.Tool, call.Arguments)
		metrics.ToolCallDuration.WithLabelValues(call.Tool).Observe(time.Since(start).Seconds())
		if err == nil {
			return content
		}
		lastErr = err
		o.logger.Warn("工具调用失败", "tool", call.Tool, "attempt", attempt+1, "error", err)
	}
	return fmt.Sprintf("Tool %s failed: %v", call.Tool, lastErr)
}

// summarize 让模型把工具结果整理成回复；模型不可用时返回拼接的兜底文本
func (o *Orchestrator) summarize(ctx context.Context, client llm.Client, userMessage string, calls []Call, results []string) string {
	var b strings.Builder
	for i, call := range calls {
		fmt.Fprintf(&b, "工具 %s 的结果:\n%s\n\n", call.Tool, results[i])
	}

	prompt := fmt.Sprintf("用户问题：%s\n\n已执行工具，结果如下：\n\n%s请根据这些结果回答用户问题。", userMessage, b.String())
	summary, err := client.Generate(ctx, prompt, llm.GenerateOptions{Temperature: 0.3})
	if err != nil {
		o.logger.Warn("结果汇总失败，返回兜底文本", "error", err)
		return "Tools executed. Results: " + strings.Join(results, "; ")
	}
	return summary
}
