package session

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisKeyPrefix = "studhelper:session:"

// RedisConfig captures the connection parameters for the redis session backend.
type RedisConfig struct {
	Address      string
	Username     string
	Password     string
	DB           int
	PoolSize     int
	TLS          bool
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	KeyPrefix    string
	// TTL expires idle sessions. Zero keeps them until cleared.
	TTL time.Duration
}

// NewRedisClient opens a client and pings it so misconfiguration surfaces at startup.
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	cfg.Address = strings.TrimSpace(cfg.Address)
	if cfg.Address == "" {
		return nil, errors.New("session: redis address is required")
	}

	opts := &redis.Options{
		Addr:         cfg.Address,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	if cfg.TLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ensureContext(ctx)).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("session: redis ping: %w", err)
	}
	return client, nil
}

// RedisStore keeps each session as a JSON document under <prefix><userID>.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client redis.UniversalClient, cfg RedisConfig) *RedisStore {
	if client == nil {
		return nil
	}
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = defaultRedisKeyPrefix
	}
	return &RedisStore{client: client, prefix: prefix, ttl: cfg.TTL}
}

func (s *RedisStore) key(userID int64) string {
	return s.prefix + strconv.FormatInt(userID, 10)
}

func (s *RedisStore) Get(ctx context.Context, userID int64) (State, bool, error) {
	if s == nil {
		return State{}, false, errNotInitialised
	}

	raw, err := s.client.Get(ensureContext(ctx), s.key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return State{}, false, nil
	}
	if err != nil {
		return State{}, false, fmt.Errorf("session: load %d: %w", userID, err)
	}
	state, err := decodeState(raw)
	if err != nil {
		return State{}, false, fmt.Errorf("session: decode %d: %w", userID, err)
	}
	return state, true, nil
}

func (s *RedisStore) SetState(ctx context.Context, userID int64, step string, data map[string]string) error {
	if s == nil {
		return errNotInitialised
	}

	raw, err := encodeState(State{Step: step, Data: data})
	if err != nil {
		return err
	}
	if err := s.client.Set(ensureContext(ctx), s.key(userID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("session: save %d: %w", userID, err)
	}
	return nil
}

func (s *RedisStore) Update(ctx context.Context, userID int64, data map[string]string) error {
	if s == nil {
		return errNotInitialised
	}
	ctx = ensureContext(ctx)
	key := s.key(userID)

	return s.client.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrSessionNotFound
		}
		if err != nil {
			return fmt.Errorf("session: load %d: %w", userID, err)
		}
		state, err := decodeState(raw)
		if err != nil {
			return fmt.Errorf("session: decode %d: %w", userID, err)
		}
		state.Data = mergeData(state.Data, data)
		encoded, err := encodeState(state)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, encoded, s.ttl)
			return nil
		})
		return err
	}, key)
}

func (s *RedisStore) Clear(ctx context.Context, userID int64) error {
	if s == nil {
		return errNotInitialised
	}
	if err := s.client.Del(ensureContext(ctx), s.key(userID)).Err(); err != nil {
		return fmt.Errorf("session: clear %d: %w", userID, err)
	}
	return nil
}

func encodeState(state State) ([]byte, error) {
	raw, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("session: encode: %w", err)
	}
	return raw, nil
}

func decodeState(raw []byte) (State, error) {
	var state State
	if err := json.Unmarshal(raw, &state); err != nil {
		return State{}, err
	}
	if state.Data == nil {
		state.Data = map[string]string{}
	}
	return state, nil
}
