package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Randon971205/pokemon-inventory-bot/internal/core/domain"
)

const (
	sessionKeyPrefix = "session:"
	purgeScanCount   = 100

	// refreshed on every save; bounds what a crashed process leaves behind
	sessionTTL = 30 * 24 * time.Hour
)

type draftRecord struct {
	State     domain.FlowState  `json:"state"`
	Action    domain.ActionKind `json:"action"`
	Product   string            `json:"product,omitempty"`
	StockType domain.StockType  `json:"stock_type,omitempty"`
	StartedAt time.Time         `json:"started_at"`
	TouchedAt time.Time         `json:"touched_at"`
}

// RedisAdapter stores one hash per user under session:<scope>:<user>.
// The scope is unique per process start, so a restart begins with every
// user unauthorized.
type RedisAdapter struct {
	client *redis.Client
	scope  string
}

func NewRedisAdapter(client *redis.Client, scope string) *RedisAdapter {
	return &RedisAdapter{client: client, scope: scope}
}

func (r *RedisAdapter) key(userID string) string {
	return sessionKeyPrefix + r.scope + ":" + userID
}

func (r *RedisAdapter) GetSession(ctx context.Context, userID string) (domain.Session, error) {
	fields, err := r.client.HGetAll(ctx, r.key(userID)).Result()
	if err != nil {
		return domain.Session{}, err
	}

	sess := domain.Session{UserID: userID}
	if len(fields) == 0 {
		return sess, nil
	}

	sess.Authorized = fields["authorized"] == "1"
	if v := fields["updated_at"]; v != "" {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			sess.UpdatedAt = t
		}
	}
	if v := fields["draft"]; v != "" {
		var d draftRecord
		if err := json.Unmarshal([]byte(v), &d); err != nil {
			return domain.Session{}, fmt.Errorf("decode draft: %w", err)
		}
		sess.Draft = &domain.PendingUpdate{
			State:     d.State,
			Action:    d.Action,
			Product:   d.Product,
			StockType: d.StockType,
			StartedAt: d.StartedAt,
			TouchedAt: d.TouchedAt,
		}
	}
	return sess, nil
}

func (r *RedisAdapter) SaveSession(ctx context.Context, session domain.Session) error {
	key := r.key(session.UserID)

	authorized := "0"
	if session.Authorized {
		authorized = "1"
	}
	fields := map[string]interface{}{
		"authorized": authorized,
		"updated_at": session.UpdatedAt.Format(time.RFC3339Nano),
	}

	if session.Draft != nil {
		d := session.Draft
		data, err := json.Marshal(draftRecord{
			State:     d.State,
			Action:    d.Action,
			Product:   d.Product,
			StockType: d.StockType,
			StartedAt: d.StartedAt,
			TouchedAt: d.TouchedAt,
		})
		if err != nil {
			return fmt.Errorf("encode draft: %w", err)
		}
		fields["draft"] = string(data)
	}

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, fields)
		if session.Draft == nil {
			pipe.HDel(ctx, key, "draft")
		}
		pipe.Expire(ctx, key, sessionTTL)
		return nil
	})
	return err
}

// Purge removes every session of this scope. Called on shutdown.
func (r *RedisAdapter) Purge(ctx context.Context) error {
	var keys []string
	iter := r.client.Scan(ctx, 0, sessionKeyPrefix+r.scope+":*", purgeScanCount).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return r.client.Del(ctx, keys...).Err()
}
