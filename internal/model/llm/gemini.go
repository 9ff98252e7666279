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

// GeminiClient Gemini 客户端
type GeminiClient struct {
	provider string
	model    string
	apiKey   string
	baseURL  string
	client   *resty.Client
}

// NewGeminiClient 创建新的 Gemini 客户端
func NewGeminiClient(model, apiKey, baseURL string) (*GeminiClient, error) {
	if model == "" {
		model = "gemini-2.0-flash"
	}
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
		if envURL := os.Getenv("GEMINI_BASE_URL"); envURL != "" {
			baseURL = envURL
		}
	}

	client := resty.New()
	client.SetTimeout(60 * time.Second)
	client.SetRetryCount(3)
	client.SetRetryWaitTime(1 * time.Second)
	client.SetRetryMaxWaitTime(5 * time.Second)

	return &GeminiClient{
		provider: "gemini",
		model:    model,
		apiKey:   apiKey,
		baseURL:  baseURL,
		client:   client,
	}, nil
}

// Generate 生成文本
func (c *GeminiClient) Generate(ctx context.Context, prompt string, options GenerateOptions) (string, error) {
	return c.Chat(ctx, []Message{{Role: "user", Content: prompt}}, options)
}

// Chat 多轮对话；assistant 角色映射为 model
func (c *GeminiClient) Chat(ctx context.Context, messages []Message, options GenerateOptions) (string, error) {
	contents := make([]map[string]interface{}, 0, len(messages))
	for _, m := range messages {
		role := m.Role
		if role == "assistant" {
			role = "model"
		}
		if role == "system" {
			role = "user"
		}
		contents = append(contents, map[string]interface{}{
			"role":  role,
			"parts": []map[string]string{{"text": m.Content}},
		})
	}

	generationConfig := map[string]interface{}{}
	if options.Temperature > 0 {
		generationConfig["temperature"] = options.Temperature
	}
	if options.MaxTokens > 0 {
		generationConfig["maxOutputTokens"] = options.MaxTokens
	}
	if len(options.Stop) > 0 {
		generationConfig["stopSequences"] = options.Stop
	}
	request := map[string]interface{}{
		"contents":         contents,
		"generationConfig": generationConfig,
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	start := time.Now()
	response, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(request).
		Post(url)
	metrics.LLMRequestDuration.WithLabelValues(c.provider).Observe(time.Since(start).Seconds())

	if err != nil {
		return "", fmt.Errorf("调用 Gemini API 失败: %w", err)
	}
	if response.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("Gemini API 返回错误: %s", response.String())
	}

	var result struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(response.Body(), &result); err != nil {
		return "", fmt.Errorf("解析 Gemini 响应失败: %w", err)
	}
	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("Gemini API 没有返回结果")
	}
	return result.Candidates[0].Content.Parts[0].Text, nil
}

// Model 返回模型名称
func (c *GeminiClient) Model() string {
	return c.model
}

// Provider 返回提供商名称
func (c *GeminiClient) Provider() string {
	return c.provider
}
