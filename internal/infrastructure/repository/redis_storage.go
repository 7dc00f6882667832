package repository

import (
	"context"
	"errors"
	"fmt"

	"shopify-session-storage/internal/domain"
	"shopify-session-storage/internal/infrastructure/repository/entity"
	"shopify-session-storage/internal/migration"
	"shopify-session-storage/internal/ports"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	redisBackend = "redis"

	// MigrateAddShopIndexes indexes sessions stored before shop index sets existed
	MigrateAddShopIndexes = "addShopIndexes"
)

// RedisSessionStorage implements SessionStorage on Redis.
// Each session is a JSON document under "<prefix>_<id>"; the ids of a shop are kept
// in the set "<prefix>:shop_index:<shop>", outside the namespace any session id can reach.
type RedisSessionStorage struct {
	url     string
	client  redis.UniversalClient
	options Options
	engine  *migration.Engine[redis.UniversalClient]
	ready   *readyGate
	logger  zerolog.Logger
}

var _ ports.SessionStorage = (*RedisSessionStorage)(nil)

// NewRedisSessionStorage connects to the server described by a redis:// URL
func NewRedisSessionStorage(ctx context.Context, redisURL string, logger zerolog.Logger, opts ...Option) *RedisSessionStorage {
	s := newRedisSessionStorage(redisURL, nil, logger, opts)
	s.ready = startReadyGate(ctx, s.init)
	return s
}

// NewRedisSessionStorageWithCredentials connects to host with the given ACL user
func NewRedisSessionStorageWithCredentials(
	ctx context.Context,
	host string,
	db int,
	username, password string,
	logger zerolog.Logger,
	opts ...Option,
) *RedisSessionStorage {
	client := redis.NewClient(&redis.Options{
		Addr:     host,
		DB:       db,
		Username: username,
		Password: password,
	})
	return NewRedisSessionStorageWithClient(ctx, client, logger, opts...)
}

// NewRedisSessionStorageWithClient uses client; Disconnect closes it
func NewRedisSessionStorageWithClient(ctx context.Context, client redis.UniversalClient, logger zerolog.Logger, opts ...Option) *RedisSessionStorage {
	s := newRedisSessionStorage("", client, logger, opts)
	s.ready = startReadyGate(ctx, s.init)
	return s
}

func newRedisSessionStorage(redisURL string, client redis.UniversalClient, logger zerolog.Logger, opts []Option) *RedisSessionStorage {
	defaults := defaultOptions()
	defaults.MigrationTableName = migration.DefaultRedisTrackerKey
	o := buildOptions(defaults, opts)

	return &RedisSessionStorage{
		url:     redisURL,
		client:  client,
		options: o,
		logger: logger.With().
			Str("component", "session_storage").
			Str("backend", redisBackend).
			Str("prefix", o.SessionTableName).
			Logger(),
	}
}

// Ready waits for the connection and migrations
func (s *RedisSessionStorage) Ready(ctx context.Context) error {
	return s.ready.Wait(ctx)
}

// StoreSession writes the full session document and indexes it under its shop
func (s *RedisSessionStorage) StoreSession(ctx context.Context, session *domain.Session) (bool, error) {
	if err := s.ready.Wait(ctx); err != nil {
		return false, err
	}

	data, err := entity.EncodeRedisSession(session)
	if err != nil {
		return false, err
	}

	previous, err := s.get(ctx, session.ID)
	if err != nil {
		return false, fmt.Errorf("failed to store session: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.sessionKey(session.ID), data, 0)
		pipe.SAdd(ctx, s.shopKey(session.Shop), session.ID)
		if previous != nil && previous.Shop != session.Shop {
			pipe.SRem(ctx, s.shopKey(previous.Shop), session.ID)
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to store session: %w", s.queryError("set", err))
	}
	return true, nil
}

// LoadSession retrieves a session by ID
func (s *RedisSessionStorage) LoadSession(ctx context.Context, id string) (*domain.Session, error) {
	if err := s.ready.Wait(ctx); err != nil {
		return nil, err
	}

	session, err := s.get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return session, nil
}

// DeleteSession removes a session and its shop index entry
func (s *RedisSessionStorage) DeleteSession(ctx context.Context, id string) (bool, error) {
	return s.DeleteSessions(ctx, []string{id})
}

// DeleteSessions removes all sessions with the given IDs
func (s *RedisSessionStorage) DeleteSessions(ctx context.Context, ids []string) (bool, error) {
	if err := s.ready.Wait(ctx); err != nil {
		return false, err
	}
	if len(ids) == 0 {
		return true, nil
	}

	sessions, err := s.getMany(ctx, ids)
	if err != nil {
		return false, fmt.Errorf("failed to delete sessions: %w", err)
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.sessionKey(id)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, keys...)
		for _, session := range sessions {
			pipe.SRem(ctx, s.shopKey(session.Shop), session.ID)
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to delete sessions: %w", s.queryError("del", err))
	}
	return true, nil
}

// FindSessionsByShop returns every session indexed under shop
func (s *RedisSessionStorage) FindSessionsByShop(ctx context.Context, shop string) ([]*domain.Session, error) {
	if err := s.ready.Wait(ctx); err != nil {
		return nil, err
	}

	ids, err := s.client.SMembers(ctx, s.shopKey(shop)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to find sessions: %w", s.queryError("smembers", err))
	}

	found, err := s.getMany(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to find sessions: %w", err)
	}

	sessions := make([]*domain.Session, 0, len(found))
	for _, session := range found {
		if session.Shop == shop {
			sessions = append(sessions, session)
		}
	}
	return sessions, nil
}

// Disconnect closes the client
func (s *RedisSessionStorage) Disconnect(ctx context.Context) error {
	s.ready.Close()
	if err := s.ready.settled(ctx); err != nil {
		return err
	}
	if s.client == nil {
		return nil
	}
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("failed to disconnect: %w", err)
	}
	s.logger.Info().Msg("Session storage disconnected")
	return nil
}

func (s *RedisSessionStorage) init(ctx context.Context) error {
	if s.client == nil {
		opts, err := redis.ParseURL(s.url)
		if err != nil {
			return &domain.ConnectionError{Backend: redisBackend, Err: err}
		}
		s.client = redis.NewClient(opts)
	}

	if err := s.client.Ping(ctx).Err(); err != nil {
		s.logger.Error().Err(err).Msg("Failed to connect to Redis")
		return &domain.ConnectionError{Backend: redisBackend, Err: err}
	}

	tracker := migration.NewRedisTracker(s.client, s.options.MigrationTableName)
	s.engine = migration.NewEngine(s.client, tracker, s.migrations(), s.logger)
	if _, err := s.engine.Run(ctx); err != nil {
		s.logger.Error().Err(err).Msg("Failed to migrate session storage")
		return err
	}

	s.logger.Info().Msg("Session storage ready")
	return nil
}

func (s *RedisSessionStorage) migrations() []migration.Migration[redis.UniversalClient] {
	return []migration.Migration[redis.UniversalClient]{
		{Name: MigrateAddShopIndexes, Up: s.addShopIndexes},
	}
}

// addShopIndexes scans existing session keys and adds each one to its shop's index set
func (s *RedisSessionStorage) addShopIndexes(ctx context.Context, client redis.UniversalClient) error {
	iter := client.Scan(ctx, 0, s.sessionKey("*"), 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		data, err := client.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return err
		}
		session, err := entity.DecodeRedisSession(data)
		if err != nil {
			return fmt.Errorf("key %s: %w", key, err)
		}
		if err := client.SAdd(ctx, s.shopKey(session.Shop), session.ID).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

func (s *RedisSessionStorage) get(ctx context.Context, id string) (*domain.Session, error) {
	data, err := s.client.Get(ctx, s.sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, s.queryError("get", err)
	}
	return entity.DecodeRedisSession(data)
}

// getMany returns the stored sessions among ids, skipping missing ones
func (s *RedisSessionStorage) getMany(ctx context.Context, ids []string) ([]*domain.Session, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.sessionKey(id)
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, s.queryError("mget", err)
	}

	sessions := make([]*domain.Session, 0, len(values))
	for _, value := range values {
		raw, ok := value.(string)
		if !ok {
			continue
		}
		session, err := entity.DecodeRedisSession([]byte(raw))
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, nil
}

func (s *RedisSessionStorage) sessionKey(id string) string {
	return s.options.SessionTableName + "_" + id
}

func (s *RedisSessionStorage) shopKey(shop string) string {
	return s.options.SessionTableName + ":shop_index:" + shop
}

func (s *RedisSessionStorage) queryError(op string, err error) error {
	return &domain.QueryError{Backend: redisBackend, Op: op, Err: err}
}
