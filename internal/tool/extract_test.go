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
	"testing"
)

func TestExtractCalls_SingleCall(t *testing.T) {
	text := `I'll look that up for you.
{"tool": "web_search", "arguments": {"query": "weather in tokyo"}}`

	calls := ExtractCalls(text)
	if len(calls) != 1 {
		t.Fatalf("len = %d, want 1", len(calls))
	}
	if calls[0].Tool != "web_search" {
		t.Errorf("tool = %q", calls[0].Tool)
	}
	if calls[0].Arguments["query"] != "weather in tokyo" {
		t.Errorf("arguments = %v", calls[0].Arguments)
	}
}

func TestExtractCalls_MultipleCalls(t *testing.T) {
	text := `{"tool": "a", "arguments": {}} some prose {"tool": "b", "arguments": {"x": 1}}`
	calls := ExtractCalls(text)
	if len(calls) != 2 {
		t.Fatalf("len = %d, want 2", len(calls))
	}
	if calls[0].Tool != "a" || calls[1].Tool != "b" {
		t.Errorf("calls = %v", calls)
	}
}

func TestExtractCalls_NestedArguments(t *testing.T) {
	text := `{"tool": "query_db", "arguments": {"filter": {"age": {"gt": 30}}, "limit": 5}}`
	calls := ExtractCalls(text)
	if len(calls) != 1 {
		t.Fatalf("len = %d, want 1", len(calls))
	}
	filter, ok := calls[0].Arguments["filter"].(map[string]any)
	if !ok {
		t.Fatalf("filter not preserved: %v", calls[0].Arguments)
	}
	if _, ok := filter["age"]; !ok {
		t.Errorf("nested filter lost: %v", filter)
	}
}

func TestExtractCalls_BracesInsideStrings(t *testing.T) {
	text := `{"tool": "echo", "arguments": {"text": "look: { not a block } \" escaped"}}`
	calls := ExtractCalls(text)
	if len(calls) != 1 {
		t.Fatalf("len = %d, want 1", len(calls))
	}
	if calls[0].Arguments["text"] != `look: { not a block } " escaped` {
		t.Errorf("text = %q", calls[0].Arguments["text"])
	}
}

func TestExtractCalls_NoToolField(t *testing.T) {
	text := `Here is some JSON: {"status": "ok", "count": 3}. No calls here.`
	if calls := ExtractCalls(text); len(calls) != 0 {
		t.Errorf("calls = %v, want none", calls)
	}
}

func TestExtractCalls_PlainText(t *testing.T) {
	if calls := ExtractCalls("just a normal answer without json"); len(calls) != 0 {
		t.Errorf("calls = %v, want none", calls)
	}
}

func TestExtractCalls_UnbalancedBraces(t *testing.T) {
	text := `{"tool": "broken", "arguments": {`
	if calls := ExtractCalls(text); len(calls) != 0 {
		t.Errorf("calls = %v, want none", calls)
	}
}

// 只带 tool 的对象是普通文本，不是调用；整段回复按原文返回给用户
func TestExtractCalls_MissingArgumentsIgnored(t *testing.T) {
	if calls := ExtractCalls(`{"tool": "no_args"}`); len(calls) != 0 {
		t.Errorf("calls = %v, want none", calls)
	}
	text := `I think {"tool": "hammer"} might help`
	if calls := ExtractCalls(text); len(calls) != 0 {
		t.Errorf("calls = %v, want none", calls)
	}
}

func TestExtractCalls_NullArgumentsDefaulted(t *testing.T) {
	calls := ExtractCalls(`{"tool": "no_args", "arguments": null}`)
	if len(calls) != 1 {
		t.Fatalf("len = %d, want 1", len(calls))
	}
	if calls[0].Arguments == nil {
		t.Error("arguments not defaulted to empty map")
	}
}
