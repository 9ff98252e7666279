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
	"encoding/json"
)

// ExtractCalls 从模型的自由文本回复中提取工具调用。
// 逐个定位平衡的 {...} 片段（字符串与转义感知），tool 与 arguments
// 两个键同时在场且 tool 非空的才算调用；只带 tool 的对象当普通文本忽略。
// 提取成功的片段不再重叠扫描其内部。
func ExtractCalls(text string) []Call {
	var calls []Call
	for i := 0; i < len(text); i++ {
		if text[i] != '{' {
			continue
		}
		end, ok := matchBrace(text, i)
		if !ok {
			continue
		}
		candidate := text[i : end+1]
		var fields map[string]json.RawMessage
		if err := json.Unmarshal([]byte(candidate), &fields); err != nil {
			continue
		}
		if _, ok := fields["arguments"]; !ok {
			continue
		}
		var c Call
		if err := json.Unmarshal([]byte(candidate), &c); err == nil && c.Tool != "" {
			if c.Arguments == nil {
				c.Arguments = map[string]any{}
			}
			calls = append(calls, c)
			i = end
		}
	}
	return calls
}

// matchBrace 从 start 处的 '{' 开始找到配对的 '}'，返回其下标。
// 跟踪字符串字面量与反斜杠转义，嵌套不平衡返回 false。
func matchBrace(text string, start int) (int, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if escaped {
			escaped = false
			continue
		}
		switch ch {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return i, true
				}
			}
		}
	}
	return 0, false
}
