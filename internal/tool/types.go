// Package tool 工具服务器接入与编排：发现工具、让模型选择、顺序执行并汇总结果。
package tool

import (
	"context"
	"fmt"
	"strings"
)

// Schema 工具入参的 JSON Schema（供模型选择工具时参考）
type Schema struct {
	Type        string                    `json:"type,omitempty"`
	Description string                    `json:"description,omitempty"`
	Properties  map[string]SchemaProperty `json:"properties,omitempty"`
	Required    []string                  `json:"required,omitempty"`
}

// SchemaProperty Schema 中单个属性的描述
type SchemaProperty struct {
	Type        string `json:"type,omitempty"`
	Description string `json:"description,omitempty"`
}

// Tool 工具描述，由工具服务器上报
type Tool struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Schema      Schema `json:"input_schema,omitempty"`
}

// Call 模型请求的一次工具调用
type Call struct {
	Tool      string         `json:"tool"`
	Arguments map[string]any `json:"arguments"`
}

// Server 一个工具服务器：上报工具清单并执行调用
type Server interface {
	// Name 服务器标识
	Name() string
	// ListTools 上报可用工具
	ListTools(ctx context.Context) ([]Tool, error)
	// CallTool 执行一次工具调用，返回文本结果
	CallTool(ctx context.Context, tool string, arguments map[string]any) (string, error)
}

// FormatForLLM 把工具清单渲染成模型提示词里的工具描述块
func FormatForLLM(tools []Tool) string {
	if len(tools) == 0 {
		return "（当前没有可用工具）"
	}
	var b strings.Builder
	for _, t := range tools {
		fmt.Fprintf(&b, "- %s: %s\n", t.Name, t.Description)
		if len(t.Schema.Properties) > 0 {
			fmt.Fprintf(&b, "  参数:\n")
			for name, p := range t.Schema.Properties {
				required := ""
				for _, r := range t.Schema.Required {
					if r == name {
						required = "（必填）"
						break
					}
				}
				fmt.Fprintf(&b, "    %s (%s)%s: %s\n", name, p.Type, required, p.Description)
			}
		}
	}
	return b.String()
}
