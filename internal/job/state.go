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

package job

import (
	"encoding/json"
	"fmt"
	"time"
)

// 合法转移：PENDING → PROCESSING → {COMPLETED | FAILED}，
// 以及 PROCESSING ↔ AWAITING_CLARIFICATION。
// AWAITING_CLARIFICATION → FAILED 用于澄清请求过期时终止任务。
var transitions = map[Status][]Status{
	StatusPending:               {StatusProcessing},
	StatusProcessing:            {StatusCompleted, StatusFailed, StatusAwaitingClarification},
	StatusAwaitingClarification: {StatusProcessing, StatusFailed},
	StatusCompleted:             {},
	StatusFailed:                {},
}

// CanTransition from 到 to 是否为合法状态转移
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// applyTransition 在内存中执行一次状态转移并落实时间戳/结果语义：
//   - 首次进入 PROCESSING 记录 StartedAt；从 AWAITING_CLARIFICATION 回来不重置
//   - 进入终态记录 CompletedAt；FAILED 写 ErrorMessage 清 ResultData，COMPLETED 相反
//
// 各 Store 实现共用此逻辑，保证 memory 与 postgres 行为一致。
func applyTransition(j *Job, to Status, result json.RawMessage, errMsg string, now time.Time) error {
	if !to.Valid() {
		return fmt.Errorf("job: unknown status %q", to)
	}
	if !CanTransition(j.Status, to) {
		return fmt.Errorf("job: illegal transition %s -> %s", j.Status, to)
	}

	j.Status = to

	if to == StatusProcessing && j.StartedAt.IsZero() {
		j.StartedAt = now
	}

	if to.Terminal() {
		j.CompletedAt = now
		if to == StatusFailed {
			j.ErrorMessage = errMsg
			if j.ErrorMessage == "" && len(result) > 0 {
				j.ErrorMessage = string(result)
			}
			j.ResultData = nil
		} else {
			j.ResultData = result
			j.ErrorMessage = ""
		}
	}
	return nil
}
