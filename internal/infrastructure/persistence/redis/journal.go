// Package redis implements the Redis-backed statement journal.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alem-hub/scorm-interceptor/internal/domain/statement"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config holds Redis connection configuration.
type Config struct {
	// Host is the Redis server hostname.
	Host string

	// Port is the Redis server port.
	Port int

	// Password is the Redis authentication password (empty if no auth).
	Password string

	// DB is the Redis database number (0-15).
	DB int

	// PoolSize is the maximum number of socket connections.
	PoolSize int

	// MinIdleConns is the minimum number of idle connections.
	MinIdleConns int

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() Config {
	return Config{
		Host:         "localhost",
		Port:         6379,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// Addr returns the Redis address in "host:port" format.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrConnection is returned when Redis cannot be reached.
	ErrConnection = errors.New("journal: redis connection failed")

	// ErrSerialization is returned when an entry cannot be encoded or decoded.
	ErrSerialization = errors.New("journal: serialization failed")
)

// KeyJournal is the default list key entries are pushed onto.
const KeyJournal = "scorm:journal"

// Connect opens a client and verifies it with PING.
func Connect(ctx context.Context, cfg Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}

	return client, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// JOURNAL
// ══════════════════════════════════════════════════════════════════════════════

// Journal keeps entries in a capped Redis list, newest at the head.
type Journal struct {
	client *redis.Client
	key    string
	size   int64
}

// NewJournal creates a journal on key that keeps at most size entries.
// An empty key means KeyJournal.
func NewJournal(client *redis.Client, key string, size int) *Journal {
	if key == "" {
		key = KeyJournal
	}
	if size <= 0 {
		size = 1000
	}
	return &Journal{client: client, key: key, size: int64(size)}
}

// Record implements statement.Journal.
func (j *Journal) Record(ctx context.Context, entry statement.Entry) error {
	if err := entry.Validate(); err != nil {
		return err
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSerialization, err)
	}

	pipe := j.client.TxPipeline()
	pipe.LPush(ctx, j.key, data)
	pipe.LTrim(ctx, j.key, 0, j.size-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("journal record: %w", err)
	}
	return nil
}

// Recent implements statement.Journal.
func (j *Journal) Recent(ctx context.Context, limit int) ([]statement.Entry, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}

	raw, err := j.client.LRange(ctx, j.key, 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("journal recent: %w", err)
	}

	entries := make([]statement.Entry, 0, len(raw))
	for _, item := range raw {
		var e statement.Entry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSerialization, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Ping checks if Redis is reachable.
func (j *Journal) Ping(ctx context.Context) error {
	return j.client.Ping(ctx).Err()
}

var _ statement.Journal = (*Journal)(nil)
