package llm

import (
	"context"
)

// Client LLM 客户端接口
type Client interface {
	// Generate 生成文本
	Generate(ctx context.Context, prompt string, options GenerateOptions) (string, error)
	// Chat 多轮对话
	Chat(ctx context.Context, messages []Message, options GenerateOptions) (string, error)
	// Model 返回模型名称
	Model() string
	// Provider 返回提供商名称
	Provider() string
}

// GenerateOptions 生成选项
type GenerateOptions struct {
	Temperature float64  `json:"temperature"`
	MaxTokens   int      `json:"max_tokens"`
	TopP        float64  `json:"top_p"`
	Stop        []string `json:"stop"`
}

// Message 聊天消息
type Message struct {
	Role    string `json:"role"` // system, user, assistant
	Content string `json:"content"`
}

// NewClient 创建 LLM 客户端；groq 走 OpenAI 兼容端点，baseURL 可覆盖默认地址
func NewClient(provider, model, apiKey, baseURL string) (Client, error) {
	switch provider {
	case "openai":
		return NewOpenAIClient(provider, model, apiKey, baseURL)
	case "groq":
		if baseURL == "" {
			baseURL = "https://api.groq.com/openai/v1"
		}
		return NewOpenAIClient(provider, model, apiKey, baseURL)
	case "claude":
		return NewClaudeClient(model, apiKey, baseURL)
	case "gemini":
		return NewGeminiClient(model, apiKey, baseURL)
	default:
		return NewOpenAIClient(provider, model, apiKey, baseURL)
	}
}
