package models

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// CartStore persists carts keyed by session id. Load of an unknown session returns an empty cart.
type CartStore interface {
	Load(ctx context.Context, sessionId string) (*Cart, error)
	Save(ctx context.Context, cart *Cart) error
	Delete(ctx context.Context, sessionId string) error
}

type RedisCartStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewRedisCartStore(client redis.UniversalClient, ttl time.Duration) *RedisCartStore {
	return &RedisCartStore{client: client, ttl: ttl}
}

func cartKey(sessionId string) string {
	return "Cart:" + sessionId
}

func (s *RedisCartStore) Load(ctx context.Context, sessionId string) (*Cart, error) {
	val, err := s.client.Get(ctx, cartKey(sessionId)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return NewCart(sessionId), nil
		}
		return nil, err
	}
	var cart Cart
	if err := json.Unmarshal(val, &cart); err != nil {
		return nil, err
	}
	cart.SessionId = sessionId
	if cart.Items == nil {
		cart.Items = []CartItem{}
	}
	return &cart, nil
}

// Save refreshes the cart's TTL on every write.
func (s *RedisCartStore) Save(ctx context.Context, cart *Cart) error {
	b, err := json.Marshal(cart)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, cartKey(cart.SessionId), b, s.ttl).Err()
}

func (s *RedisCartStore) Delete(ctx context.Context, sessionId string) error {
	return s.client.Del(ctx, cartKey(sessionId)).Err()
}

type MemoryCartStore struct {
	mu    sync.Mutex
	carts map[string][]byte
}

func NewMemoryCartStore() *MemoryCartStore {
	return &MemoryCartStore{carts: map[string][]byte{}}
}

func (s *MemoryCartStore) Load(_ context.Context, sessionId string) (*Cart, error) {
	s.mu.Lock()
	b, ok := s.carts[sessionId]
	s.mu.Unlock()
	if !ok {
		return NewCart(sessionId), nil
	}
	var cart Cart
	if err := json.Unmarshal(b, &cart); err != nil {
		return nil, err
	}
	if cart.Items == nil {
		cart.Items = []CartItem{}
	}
	return &cart, nil
}

func (s *MemoryCartStore) Save(_ context.Context, cart *Cart) error {
	b, err := json.Marshal(cart)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.carts[cart.SessionId] = b
	s.mu.Unlock()
	return nil
}

func (s *MemoryCartStore) Delete(_ context.Context, sessionId string) error {
	s.mu.Lock()
	delete(s.carts, sessionId)
	s.mu.Unlock()
	return nil
}
