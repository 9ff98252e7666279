package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-resty/resty/v2"

	"synapse-platform/pkg/metrics"
)

// ClaudeClient Claude 客户端
type ClaudeClient struct {
	provider string
	model    string
	apiKey   string
	baseURL  string
	client   *resty.Client
}

// NewClaudeClient 创建新的 Claude 客户端
func NewClaudeClient(model, apiKey, baseURL string) (*ClaudeClient, error) {
	if model == "" {
		model = "claude-sonnet-4-20250514"
	}
	if baseURL == "" {
		baseURL = "https://api.anthropic.com/v1"
		if envURL := os.Getenv("ANTHROPIC_BASE_URL"); envURL != "" {
			baseURL = envURL
		}
	}

	client := resty.New()
	client.SetTimeout(60 * time.Second)
	client.SetRetryCount(3)
	client.SetRetryWaitTime(1 * time.Second)
	client.SetRetryMaxWaitTime(5 * time.Second)

	return &ClaudeClient{
		provider: "claude",
		model:    model,
		apiKey:   apiKey,
		baseURL:  baseURL,
		client:   client,
	}, nil
}

// Generate 生成文本
func (c *ClaudeClient) Generate(ctx context.Context, prompt string, options GenerateOptions) (string, error) {
	return c.Chat(ctx, []Message{{Role: "user", Content: prompt}}, options)
}

// Chat 多轮对话；system 角色消息提取到顶层 system 字段
func (c *ClaudeClient) Chat(ctx context.Context, messages []Message, options GenerateOptions) (string, error) {
	var system string
	chat := make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == "system" {
			system = m.Content
			continue
		}
		chat = append(chat, m)
	}

	maxTokens := options.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096 // Claude 要求必填
	}
	request := map[string]interface{}{
		"model":      c.model,
		"messages":   chat,
		"max_tokens": maxTokens,
	}
	if system != "" {
		request["system"] = system
	}
	if options.Temperature > 0 {
		request["temperature"] = options.Temperature
	}
	if len(options.Stop) > 0 {
		request["stop_sequences"] = options.Stop
	}

	start := time.Now()
	response, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("x-api-key", c.apiKey).
		SetHeader("anthropic-version", "2023-06-01").
		SetBody(request).
		Post(c.baseURL + "/messages")
	metrics.LLMRequestDuration.WithLabelValues(c.provider).Observe(time.Since(start).Seconds())

	if err != nil {
		return "", fmt.Errorf("调用 Claude API 失败: %w", err)
	}
	if response.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("Claude API 返回错误: %s", response.String())
	}

	var result struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(response.Body(), &result); err != nil {
		return "", fmt.Errorf("解析 Claude 响应失败: %w", err)
	}
	if len(result.Content) == 0 {
		return "", fmt.Errorf("Claude API 没有返回结果")
	}
	return result.Content[0].Text, nil
}

// Model 返回模型名称
func (c *ClaudeClient) Model() string {
	return c.model
}

// Provider 返回提供商名称
func (c *ClaudeClient) Provider() string {
	return c.provider
}
