package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "academy:identity:"

// RedisRepository stores each identity as one JSON document plus an email index key
type RedisRepository struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisRepository creates a repository on top of an existing client.
// An empty prefix falls back to "academy:identity:".
func NewRedisRepository(client redis.UniversalClient, prefix string) *RedisRepository {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisRepository{client: client, prefix: prefix}
}

func (r *RedisRepository) idKey(id uuid.UUID) string {
	return r.prefix + "id:" + id.String()
}

func (r *RedisRepository) emailKey(email string) string {
	return r.prefix + "email:" + email
}

func (r *RedisRepository) Create(ctx context.Context, ident *Identity) error {
	ident.Email = NormalizeEmail(ident.Email)
	doc, err := json.Marshal(ident)
	if err != nil {
		return fmt.Errorf("failed to encode identity: %w", err)
	}

	claimed, err := r.client.SetNX(ctx, r.emailKey(ident.Email), ident.ID.String(), 0).Result()
	if err != nil {
		return fmt.Errorf("failed to reserve email: %w", err)
	}
	if !claimed {
		return ErrEmailTaken
	}

	if err := r.client.Set(ctx, r.idKey(ident.ID), doc, 0).Err(); err != nil {
		r.client.Del(ctx, r.emailKey(ident.Email))
		return fmt.Errorf("failed to store identity: %w", err)
	}
	return nil
}

func (r *RedisRepository) GetByID(ctx context.Context, id uuid.UUID) (*Identity, error) {
	data, err := r.client.Get(ctx, r.idKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrIdentityNotFound
		}
		return nil, fmt.Errorf("failed to load identity: %w", err)
	}

	var ident Identity
	if err := json.Unmarshal(data, &ident); err != nil {
		return nil, fmt.Errorf("failed to decode identity: %w", err)
	}
	return &ident, nil
}

func (r *RedisRepository) GetByEmail(ctx context.Context, email string) (*Identity, error) {
	raw, err := r.client.Get(ctx, r.emailKey(NormalizeEmail(email))).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrIdentityNotFound
		}
		return nil, fmt.Errorf("failed to resolve email: %w", err)
	}

	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("corrupt email index for %s: %w", email, err)
	}
	return r.GetByID(ctx, id)
}

func (r *RedisRepository) Save(ctx context.Context, ident *Identity) error {
	previous, err := r.GetByID(ctx, ident.ID)
	if err != nil {
		return err
	}

	ident.Email = NormalizeEmail(ident.Email)
	doc, err := json.Marshal(ident)
	if err != nil {
		return fmt.Errorf("failed to encode identity: %w", err)
	}

	if ident.Email != previous.Email {
		claimed, err := r.client.SetNX(ctx, r.emailKey(ident.Email), ident.ID.String(), 0).Result()
		if err != nil {
			return fmt.Errorf("failed to reserve email: %w", err)
		}
		if !claimed {
			return ErrEmailTaken
		}
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.idKey(ident.ID), doc, 0)
		if ident.Email != previous.Email {
			pipe.Del(ctx, r.emailKey(previous.Email))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store identity: %w", err)
	}
	return nil
}
