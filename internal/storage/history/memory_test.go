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

package history

import (
	"context"
	"fmt"
	"testing"
)

func TestMemoryCache_WindowKeepsLatest(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(5)

	for i := 0; i < 12; i++ {
		err := c.Append(ctx, "c1", Entry{Role: "user", Content: fmt.Sprintf("msg-%d", i)})
		if err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
	}

	got, err := c.Recent(ctx, "c1", 5)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("len = %d, want 5", len(got))
	}
	// 窗口内是最近 5 条，按时间正序
	for i, e := range got {
		want := fmt.Sprintf("msg-%d", 7+i)
		if e.Content != want {
			t.Errorf("entry %d = %q, want %q", i, e.Content, want)
		}
	}
}

func TestMemoryCache_RecentLimit(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(10)

	for i := 0; i < 6; i++ {
		_ = c.Append(ctx, "c1", Entry{Content: fmt.Sprintf("msg-%d", i)})
	}

	got, _ := c.Recent(ctx, "c1", 3)
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if got[0].Content != "msg-3" || got[2].Content != "msg-5" {
		t.Errorf("got %v", got)
	}
}

func TestMemoryCache_EmptyConversation(t *testing.T) {
	c := NewMemoryCache(0)
	got, err := c.Recent(context.Background(), "nope", 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("len = %d, want 0", len(got))
	}
}

func TestMemoryCache_IsolatedConversations(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(5)

	_ = c.Append(ctx, "c1", Entry{Content: "for c1"})
	_ = c.Append(ctx, "c2", Entry{Content: "for c2"})

	got, _ := c.Recent(ctx, "c1", 5)
	if len(got) != 1 || got[0].Content != "for c1" {
		t.Errorf("c1 window polluted: %v", got)
	}
}
