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

package conversation

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgStore Postgres 实现。
// 表结构（schema 由迁移管理）：
//
//	conversations(uuid PK, user_id, title, summary, created_at, updated_at)
//	messages(uuid PK, conversation_id FK, role, content, created_at)
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore 创建基于 PostgreSQL 的会话存储
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

// NewPgStoreWithPool 复用已有连接池（与 job 存储共享）
func NewPgStoreWithPool(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// Close 关闭连接池
func (s *PgStore) Close() {
	s.pool.Close()
}

func (s *PgStore) GetOrCreate(ctx context.Context, conversationID, userID string) (*Conversation, error) {
	if conversationID == "" {
		return nil, errors.New("conversation: id required")
	}
	now := time.Now()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO conversations (uuid, user_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $3)
		 ON CONFLICT (uuid) DO NOTHING`,
		conversationID, userID, now)
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, conversationID)
}

func (s *PgStore) Get(ctx context.Context, conversationID string) (*Conversation, error) {
	var c Conversation
	var title, summary *string
	err := s.pool.QueryRow(ctx,
		`SELECT uuid, user_id, title, summary, created_at, updated_at
		 FROM conversations WHERE uuid = $1`,
		conversationID).Scan(&c.ID, &c.UserID, &title, &summary, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if title != nil {
		c.Title = *title
	}
	if summary != nil {
		c.Summary = *summary
	}
	return &c, nil
}

func (s *PgStore) List(ctx context.Context, userID string) ([]*Conversation, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT uuid, user_id, title, summary, created_at, updated_at
		 FROM conversations WHERE user_id = $1 ORDER BY updated_at DESC`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Conversation
	for rows.Next() {
		var c Conversation
		var title, summary *string
		if err := rows.Scan(&c.ID, &c.UserID, &title, &summary, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		if title != nil {
			c.Title = *title
		}
		if summary != nil {
			c.Summary = *summary
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

func (s *PgStore) Rename(ctx context.Context, conversationID, title string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE conversations SET title = $2, updated_at = $3 WHERE uuid = $1`,
		conversationID, title, time.Now())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PgStore) SaveSummary(ctx context.Context, conversationID, summary string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE conversations SET summary = $2, updated_at = $3 WHERE uuid = $1`,
		conversationID, summary, time.Now())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PgStore) AddMessage(ctx context.Context, m *Message) error {
	if m == nil || m.ConversationID == "" {
		return errors.New("conversation: message conversation_id required")
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO messages (uuid, conversation_id, role, content, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		m.ID, m.ConversationID, m.Role, m.Content, m.CreatedAt)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`UPDATE conversations SET updated_at = $2 WHERE uuid = $1`,
		m.ConversationID, m.CreatedAt)
	return err
}

func (s *PgStore) MessageCount(ctx context.Context, conversationID string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM messages WHERE conversation_id = $1`,
		conversationID).Scan(&count)
	return count, err
}

func (s *PgStore) Messages(ctx context.Context, conversationID string, limit int) ([]*Message, error) {
	query := `SELECT uuid, conversation_id, role, content, created_at
		 FROM messages WHERE conversation_id = $1 ORDER BY created_at DESC`
	args := []interface{}{conversationID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// 查询按倒序取最近 limit 条，反转成时间正序
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
