package job

import (
	"encoding/json"
	"time"
)

// Status 任务状态；字符串形式直接入库并对外暴露
type Status string

const (
	StatusPending               Status = "PENDING"
	StatusProcessing            Status = "PROCESSING"
	StatusAwaitingClarification Status = "AWAITING_CLARIFICATION"
	StatusCompleted             Status = "COMPLETED"
	StatusFailed                Status = "FAILED"
)

// Terminal 是否为终态（COMPLETED / FAILED）
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Valid 是否为已知状态
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusAwaitingClarification, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Job 处理任务实体：消息提交创建 Job，由 Worker 拉取并执行。
// 只追加不删除；ResultData 与 ErrorMessage 互斥，CompletedAt 仅在终态非零。
type Job struct {
	ID             string
	UserID         string
	ConversationID string
	Type           string
	Status         Status
	InputData      json.RawMessage
	ResultData     json.RawMessage
	ErrorMessage   string
	RetryCount     int
	Priority       int
	CreatedAt      time.Time
	StartedAt      time.Time
	CompletedAt    time.Time
}

// UpdatedAt 最近一次状态变化的时间（completed > started > created）
func (j *Job) UpdatedAt() time.Time {
	if !j.CompletedAt.IsZero() {
		return j.CompletedAt
	}
	if !j.StartedAt.IsZero() {
		return j.StartedAt
	}
	return j.CreatedAt
}
