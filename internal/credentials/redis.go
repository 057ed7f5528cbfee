package credentials

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps the credential as a JSON value under a single key. No TTL
// is set: the refresh token stays valid until the grant is revoked, so the
// record must survive access-token expiry.
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore creates a Redis-backed credential store. Key may be empty.
func NewRedisStore(client *redis.Client, key string) *RedisStore {
	if key == "" {
		key = "strava:credential"
	}
	return &RedisStore{client: client, key: key}
}

func (s *RedisStore) Load(ctx context.Context) (*Credential, error) {
	b, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var cred Credential
	if err := json.Unmarshal(b, &cred); err != nil {
		return nil, err
	}
	return &cred, nil
}

func (s *RedisStore) Save(ctx context.Context, cred *Credential) error {
	b, err := json.Marshal(cred)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key, b, 0).Err()
}
