package task

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisIndexKey  = "taskboard:tasks"
	redisTaskKeyNS = "taskboard:task:"
)

// updateIfExists sets hash fields only when the task hash is present.
var updateIfExists = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return 0
end
redis.call('HSET', KEYS[1], unpack(ARGV))
return 1
`)

// RedisStore keeps each task in a hash and the set of ids in an index set.
type RedisStore struct {
	rc *redis.Client
}

// NewRedisStore creates a RedisStore.
func NewRedisStore(rc *redis.Client) *RedisStore {
	return &RedisStore{rc: rc}
}

func taskKey(id string) string { return redisTaskKeyNS + id }

// EnsureTable checks connectivity; redis needs no schema.
func (s *RedisStore) EnsureTable(ctx context.Context) error {
	return s.rc.Ping(ctx).Err()
}

// Insert writes the task hash and indexes its id.
func (s *RedisStore) Insert(ctx context.Context, t Task) error {
	_, err := s.rc.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, taskKey(t.ID), map[string]any{
			"id":             t.ID,
			FieldTitle:       t.Title,
			FieldDescription: t.Description,
			FieldStatus:      string(t.Status),
			"created_at":     t.CreatedAt.Format(time.RFC3339Nano),
			FieldUpdatedAt:   t.UpdatedAt.Format(time.RFC3339Nano),
		})
		p.SAdd(ctx, redisIndexKey, t.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// SelectAll returns every indexed task.
func (s *RedisStore) SelectAll(ctx context.Context) ([]Task, error) {
	ids, err := s.rc.SMembers(ctx, redisIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	tasks := make([]Task, 0, len(ids))
	if len(ids) == 0 {
		return tasks, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = s.rc.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = p.HGetAll(ctx, taskKey(id))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	for _, cmd := range cmds {
		h := cmd.Val()
		if len(h) == 0 {
			// deleted after SMEMBERS
			continue
		}
		t, err := taskFromHash(h)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	return tasks, nil
}

// SelectByID reads one task hash.
func (s *RedisStore) SelectByID(ctx context.Context, id string) (*Task, error) {
	h, err := s.rc.HGetAll(ctx, taskKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}
	if len(h) == 0 {
		return nil, ErrNotFound
	}
	return taskFromHash(h)
}

// UpdateFields sets hash fields atomically if the task exists.
func (s *RedisStore) UpdateFields(ctx context.Context, id string, fields map[string]any) (int64, error) {
	if len(fields) == 0 {
		return 0, fmt.Errorf("update: no fields")
	}
	args := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		switch k {
		case FieldTitle, FieldDescription:
			str, ok := v.(string)
			if !ok {
				return 0, fmt.Errorf("update: bad value for %s: %T", k, v)
			}
			args = append(args, k, str)
		case FieldStatus:
			st, ok := v.(Status)
			if !ok {
				return 0, fmt.Errorf("update: bad value for %s: %T", k, v)
			}
			args = append(args, k, string(st))
		case FieldUpdatedAt:
			ts, ok := v.(time.Time)
			if !ok {
				return 0, fmt.Errorf("update: bad value for %s: %T", k, v)
			}
			args = append(args, k, ts.UTC().Format(time.RFC3339Nano))
		default:
			return 0, fmt.Errorf("update: unknown field %q", k)
		}
	}
	n, err := updateIfExists.Run(ctx, s.rc, []string{taskKey(id)}, args...).Int64()
	if err != nil {
		return 0, fmt.Errorf("update task %s: %w", id, err)
	}
	return n, nil
}

// DeleteByID removes the task hash and its index entry.
func (s *RedisStore) DeleteByID(ctx context.Context, id string) (int64, error) {
	var del *redis.IntCmd
	_, err := s.rc.TxPipelined(ctx, func(p redis.Pipeliner) error {
		del = p.Del(ctx, taskKey(id))
		p.SRem(ctx, redisIndexKey, id)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("delete task %s: %w", id, err)
	}
	return del.Val(), nil
}

func taskFromHash(h map[string]string) (*Task, error) {
	created, err := time.Parse(time.RFC3339Nano, h["created_at"])
	if err != nil {
		return nil, fmt.Errorf("task %s: parse created_at: %w", h["id"], err)
	}
	updated, err := time.Parse(time.RFC3339Nano, h[FieldUpdatedAt])
	if err != nil {
		return nil, fmt.Errorf("task %s: parse updated_at: %w", h["id"], err)
	}
	t := &Task{
		ID:          h["id"],
		Title:       h[FieldTitle],
		Description: h[FieldDescription],
		Status:      Status(h[FieldStatus]),
		CreatedAt:   created,
		UpdatedAt:   updated,
	}
	normalize(t)
	return t, nil
}
