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

package jobstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore Redis 实现：
//   - job:{id}:state          HASH，字段值为 JSON 编码
//   - job:{id}:clarification  STRING，JSON 编码，ClarificationTTL 过期
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore 创建 Redis 易失态存储
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func stateKey(jobID string) string {
	return fmt.Sprintf("job:%s:state", jobID)
}

func clarificationKey(jobID string) string {
	return fmt.Sprintf("job:%s:clarification", jobID)
}

func (s *RedisStore) SetState(ctx context.Context, jobID string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	encoded := make(map[string]any, len(fields))
	for k, v := range fields {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("jobstate: encode field %s: %w", k, err)
		}
		encoded[k] = string(data)
	}
	if err := s.client.HSet(ctx, stateKey(jobID), encoded).Err(); err != nil {
		return fmt.Errorf("jobstate: set state %s: %w", jobID, err)
	}
	return nil
}

func (s *RedisStore) GetState(ctx context.Context, jobID string) (map[string]any, error) {
	raw, err := s.client.HGetAll(ctx, stateKey(jobID)).Result()
	if err != nil {
		return nil, fmt.Errorf("jobstate: get state %s: %w", jobID, err)
	}
	if len(raw) == 0 {
		return nil, ErrNotFound
	}
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		var decoded any
		if err := json.Unmarshal([]byte(v), &decoded); err != nil {
			// 非 JSON 的历史字段按原文返回
			out[k] = v
			continue
		}
		out[k] = decoded
	}
	return out, nil
}

func (s *RedisStore) SaveClarification(ctx context.Context, c *Clarification) error {
	if c == nil || c.JobID == "" {
		return errors.New("jobstate: clarification job_id required")
	}
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("jobstate: encode clarification: %w", err)
	}
	if err := s.client.Set(ctx, clarificationKey(c.JobID), data, ClarificationTTL).Err(); err != nil {
		return fmt.Errorf("jobstate: save clarification %s: %w", c.JobID, err)
	}
	return nil
}

func (s *RedisStore) GetClarification(ctx context.Context, jobID string) (*Clarification, error) {
	data, err := s.client.Get(ctx, clarificationKey(jobID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("jobstate: get clarification %s: %w", jobID, err)
	}
	var c Clarification
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("jobstate: decode clarification %s: %w", jobID, err)
	}
	return &c, nil
}

func (s *RedisStore) ConsumeClarification(ctx context.Context, jobID string) (*Clarification, error) {
	data, err := s.client.GetDel(ctx, clarificationKey(jobID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("jobstate: consume clarification %s: %w", jobID, err)
	}
	var c Clarification
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("jobstate: decode clarification %s: %w", jobID, err)
	}
	return &c, nil
}
