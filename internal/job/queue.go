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

// 队列划分：轻量路由/调度决策走 cpu_light，昂贵生成走 cpu_heavy，
// 独立扩缩容并避免重任务饿死交互路径
const (
	QueueLight = "cpu_light"
	QueueHeavy = "cpu_heavy"
)

// Worker 任务类型
const (
	TaskRouteInput            = "route_input_task"
	TaskResumeClarification   = "resume_with_clarification_task"
	TaskGenerateTitle         = "generate_title_task"
	TaskSummarizeConversation = "summarize_conversation_task"
)

// DefaultPriority 默认任务优先级
const DefaultPriority = 1
