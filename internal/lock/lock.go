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

// Package lock 按 job 粒度的互斥锁：同一 job 的状态转移在任意时刻只允许一个持有者执行。
// 锁带持有超时，持有者崩溃后自动过期，不会永久卡死 job。
package lock

import (
	"context"
	"errors"
	"time"
)

const (
	// DefaultHoldTimeout 锁的自动过期时间
	DefaultHoldTimeout = 60 * time.Second
	// DefaultWaitTimeout 获取锁的最长等待时间
	DefaultWaitTimeout = 5 * time.Second
)

// ErrBusy 等待超时仍未获取到锁
var ErrBusy = errors.New("lock: busy")

// Handle 已获取的锁；Release 只释放自己持有的那一次
type Handle interface {
	Release(ctx context.Context) error
}

// Locker job 锁接口。Acquire 在 waitTimeout 内轮询获取，超时返回 ErrBusy。
type Locker interface {
	Acquire(ctx context.Context, jobID string, holdTimeout, waitTimeout time.Duration) (Handle, error)
}
