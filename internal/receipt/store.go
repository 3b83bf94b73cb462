package receipt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	d "github.com/fjod/go_cart/storefront/domain"
)

// Store keeps the receipts issued to each user during their session.
type Store interface {
	Get(ctx context.Context, username, orderID string) (*d.Receipt, error)
	Put(ctx context.Context, username string, r *d.Receipt) error
}

type MemoryStore struct {
	mu       sync.RWMutex
	receipts map[string]d.Receipt
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{receipts: make(map[string]d.Receipt)}
}

func (m *MemoryStore) Get(_ context.Context, username, orderID string) (*d.Receipt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.receipts[storeKey(username, orderID)]
	if !ok {
		return nil, d.ErrReceiptNotFound
	}
	return &r, nil
}

func (m *MemoryStore) Put(_ context.Context, username string, r *d.Receipt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.receipts[storeKey(username, r.OrderID)] = *r
	return nil
}

type RedisStore struct {
	client  *redis.Client
	baseTTL time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisStore{client: client, baseTTL: ttl}
}

func (s *RedisStore) Get(ctx context.Context, username, orderID string) (*d.Receipt, error) {
	data, err := s.client.Get(ctx, storeKey(username, orderID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, d.ErrReceiptNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var r d.Receipt
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("unmarshal receipt failed: %w", err)
	}
	return &r, nil
}

func (s *RedisStore) Put(ctx context.Context, username string, r *d.Receipt) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal receipt failed: %w", err)
	}

	jitter := time.Duration(rand.Intn(5)) * time.Minute
	if err := s.client.Set(ctx, storeKey(username, r.OrderID), data, s.baseTTL+jitter).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func storeKey(username, orderID string) string {
	return fmt.Sprintf("receipt:%s:%s", username, orderID)
}
