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

package gateway

import (
	"errors"
	"sync"
	"testing"

	"synapse-platform/internal/relay"
	"synapse-platform/pkg/log"
)

type fakeConn struct {
	mu       sync.Mutex
	messages []any
	fail     bool
}

func (c *fakeConn) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("write: broken pipe")
	}
	c.messages = append(c.messages, v)
	return nil
}

func (c *fakeConn) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	logger, err := log.NewLogger(nil)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	return NewRegistry(logger)
}

func TestRegistry_DeliverToRegistered(t *testing.T) {
	r := testRegistry(t)
	conn := &fakeConn{}
	r.Register("client-a", conn)

	if !r.Deliver(&relay.Event{OwnerID: "client-a", JobID: "j1"}) {
		t.Fatal("Deliver returned false for registered client")
	}
	if conn.count() != 1 {
		t.Errorf("messages = %d, want 1", conn.count())
	}
}

func TestRegistry_DeliverUnknownOwner(t *testing.T) {
	r := testRegistry(t)
	if r.Deliver(&relay.Event{OwnerID: "ghost", JobID: "j1"}) {
		t.Error("Deliver returned true for unknown client")
	}
}

func TestRegistry_RegisterReplaces(t *testing.T) {
	r := testRegistry(t)
	old := &fakeConn{}
	r.Register("client-a", old)

	fresh := &fakeConn{}
	replaced := r.Register("client-a", fresh)
	if replaced != old {
		t.Error("Register did not return replaced connection")
	}

	r.Deliver(&relay.Event{OwnerID: "client-a", JobID: "j1"})
	if fresh.count() != 1 || old.count() != 0 {
		t.Errorf("delivery went to old connection: old=%d fresh=%d", old.count(), fresh.count())
	}
}

// 旧连接的延迟注销不能移除重连后的新连接
func TestRegistry_UnregisterOnlySameConn(t *testing.T) {
	r := testRegistry(t)
	old := &fakeConn{}
	r.Register("client-a", old)
	fresh := &fakeConn{}
	r.Register("client-a", fresh)

	r.Unregister("client-a", old)
	if r.Len() != 1 {
		t.Fatal("stale Unregister removed fresh connection")
	}
	r.Unregister("client-a", fresh)
	if r.Len() != 0 {
		t.Error("Unregister did not remove own connection")
	}
}

func TestRegistry_DeliverWriteFailure(t *testing.T) {
	r := testRegistry(t)
	conn := &fakeConn{fail: true}
	r.Register("client-a", conn)

	// 写失败仍按已处理计，清理交给读循环
	if !r.Deliver(&relay.Event{OwnerID: "client-a", JobID: "j1"}) {
		t.Error("Deliver returned false on write failure")
	}
}
