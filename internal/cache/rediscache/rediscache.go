// Package rediscache persists item values in Redis.
//
// Each item is one key, <prefix><path>, holding a CBOR envelope with the
// value and the write time in Unix nanoseconds.
package rediscache

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/fxamacker/cbor/v2"
	backend "github.com/redis/go-redis/v9"

	"github.com/nerrad567/gray-logic-items/internal/item"
)

// DefaultPrefix is prepended to every item path.
const DefaultPrefix = "graylogic:item:"

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
	}
	encMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR encoder mode: %v", err))
	}

	decOpts := cbor.DecOptions{
		DupMapKey:      cbor.DupMapKeyQuiet,
		IndefLength:    cbor.IndefLengthAllowed,
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}
	decMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR decoder mode: %v", err))
	}
}

// envelope is the stored record.
type envelope struct {
	Value    any   `cbor:"v"`
	Modified int64 `cbor:"t"`
}

// Store implements item.Persistence on Redis.
type Store struct {
	client *backend.Client
	prefix string
	now    func() time.Time
}

var _ item.Persistence = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New connects a Store to the Redis server at address.
func New(address, password string, db int, opts ...Option) *Store {
	return NewFromClient(backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	}), opts...)
}

// NewFromClient creates a Store on an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	s := &Store{
		client: client,
		prefix: DefaultPrefix,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) key(path string) string {
	return s.prefix + path
}

// Read returns the cached value for path and when it was written.
func (s *Store) Read(ctx context.Context, path string) (time.Time, any, error) {
	data, err := s.client.Get(ctx, s.key(path)).Bytes()
	if errors.Is(err, backend.Nil) {
		return time.Time{}, nil, item.ErrCacheMiss
	}
	if err != nil {
		return time.Time{}, nil, fmt.Errorf("failed to get from redis: %w", err)
	}
	if len(data) == 0 {
		return time.Time{}, nil, item.ErrCacheEmpty
	}

	var env envelope
	if err := decMode.Unmarshal(data, &env); err != nil {
		return time.Time{}, nil, fmt.Errorf("failed to decode cached value: %w", err)
	}
	modified := time.Unix(0, env.Modified)
	if env.Value == nil {
		return modified, nil, item.ErrCacheEmpty
	}
	return modified, env.Value, nil
}

// Write stores value for path.
func (s *Store) Write(ctx context.Context, path string, value any) error {
	data, err := encMode.Marshal(envelope{Value: value, Modified: s.now().UnixNano()})
	if err != nil {
		return fmt.Errorf("failed to encode value: %w", err)
	}
	if err := s.client.Set(ctx, s.key(path), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

// Delete removes the record for path.
func (s *Store) Delete(ctx context.Context, path string) error {
	return s.client.Del(ctx, s.key(path)).Err()
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}
