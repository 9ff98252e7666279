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
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// HTTPServer 通过 HTTP/JSON 接入的工具服务器：
//   - POST {base}/tools/list    工具清单
//   - POST {base}/tools/call    执行调用 {"tool": ..., "arguments": ...}
type HTTPServer struct {
	name    string
	baseURL string
	client  *resty.Client
}

// NewHTTPServer 创建 HTTP 工具服务器客户端
func NewHTTPServer(name, baseURL string) *HTTPServer {
	client := resty.New()
	client.SetTimeout(30 * time.Second)
	return &HTTPServer{name: name, baseURL: baseURL, client: client}
}

// Name 服务器标识
func (s *HTTPServer) Name() string {
	return s.name
}

// ListTools 拉取工具清单
func (s *HTTPServer) ListTools(ctx context.Context) ([]Tool, error) {
	response, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]any{}).
		Post(s.baseURL + "/tools/list")
	if err != nil {
		return nil, fmt.Errorf("tool: list from %s: %w", s.name, err)
	}
	if response.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("tool: %s 返回错误: %s", s.name, response.String())
	}
	var result struct {
		Tools []Tool `json:"tools"`
	}
	if err := json.Unmarshal(response.Body(), &result); err != nil {
		return nil, fmt.Errorf("tool: 解析 %s 工具清单: %w", s.name, err)
	}
	return result.Tools, nil
}

// CallTool 执行一次调用
func (s *HTTPServer) CallTool(ctx context.Context, tool string, arguments map[string]any) (string, error) {
	response, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]any{"tool": tool, "arguments": arguments}).
		Post(s.baseURL + "/tools/call")
	if err != nil {
		return "", fmt.Errorf("tool: call %s on %s: %w", tool, s.name, err)
	}
	if response.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("tool: %s 调用 %s 返回错误: %s", s.name, tool, response.String())
	}
	var result struct {
		Content string `json:"content"`
		Error   string `json:"error,omitempty"`
	}
	if err := json.Unmarshal(response.Body(), &result); err != nil {
		return "", fmt.Errorf("tool: 解析 %s 调用结果: %w", tool, err)
	}
	if result.Error != "" {
		return "", fmt.Errorf("tool: %s 执行失败: %s", tool, result.Error)
	}
	return result.Content, nil
}
