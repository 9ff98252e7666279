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
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgStore Postgres 实现：processing_jobs 表，API 与 Worker 共享。
// 表结构（schema 由迁移管理）：
//
//	processing_jobs(uuid PK, user_id, conversation_id, job_type, status,
//	  input_data jsonb, result_data jsonb, error_message text,
//	  retry_count int, priority int, created_at, started_at, completed_at)
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore 创建基于 PostgreSQL 的 Job Store；dsn 为连接串
func NewPgStore(ctx context.Context, dsn string) (*PgStore, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &PgStore{pool: pool}, nil
}

// Close 关闭连接池
func (s *PgStore) Close() {
	s.pool.Close()
}

func nullTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}

func nullStr(v string) interface{} {
	if v == "" {
		return nil
	}
	return v
}

func nullJSON(v json.RawMessage) interface{} {
	if len(v) == 0 {
		return nil
	}
	return []byte(v)
}

func (s *PgStore) Create(ctx context.Context, j *Job) error {
	if j == nil || j.ID == "" {
		return errors.New("job: id required")
	}
	if j.Status == "" {
		j.Status = StatusPending
	}
	if j.CreatedAt.IsZero() {
		j.CreatedAt = time.Now()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO processing_jobs (uuid, user_id, conversation_id, job_type, status, input_data, retry_count, priority, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		j.ID, j.UserID, j.ConversationID, j.Type, string(j.Status), nullJSON(j.InputData), j.RetryCount, j.Priority, j.CreatedAt)
	return err
}

func (s *PgStore) Get(ctx context.Context, jobID string) (*Job, error) {
	var j Job
	var status string
	var inputData, resultData []byte
	var errMsg *string
	var startedAt, completedAt *time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT uuid, user_id, conversation_id, job_type, status, input_data, result_data, error_message, retry_count, priority, created_at, started_at, completed_at
		 FROM processing_jobs WHERE uuid = $1`,
		jobID).Scan(&j.ID, &j.UserID, &j.ConversationID, &j.Type, &status, &inputData, &resultData, &errMsg, &j.RetryCount, &j.Priority, &j.CreatedAt, &startedAt, &completedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	j.Status = Status(status)
	j.InputData = inputData
	j.ResultData = resultData
	if errMsg != nil {
		j.ErrorMessage = *errMsg
	}
	if startedAt != nil {
		j.StartedAt = *startedAt
	}
	if completedAt != nil {
		j.CompletedAt = *completedAt
	}
	return &j, nil
}

// UpdateStatus 读改写在调用方持 job 锁的前提下执行；转移校验与时间戳语义复用 applyTransition
func (s *PgStore) UpdateStatus(ctx context.Context, jobID string, to Status, result json.RawMessage, errMsg string) (*Job, error) {
	j, err := s.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if err := applyTransition(j, to, result, errMsg, time.Now()); err != nil {
		return nil, err
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE processing_jobs
		 SET status = $2, result_data = $3, error_message = $4, started_at = $5, completed_at = $6
		 WHERE uuid = $1`,
		jobID, string(j.Status), nullJSON(j.ResultData), nullStr(j.ErrorMessage), nullTime(j.StartedAt), nullTime(j.CompletedAt))
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrNotFound
	}
	return j, nil
}

func (s *PgStore) IncrementRetry(ctx context.Context, jobID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE processing_jobs SET retry_count = retry_count + 1 WHERE uuid = $1`, jobID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
