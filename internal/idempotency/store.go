// Package idempotency remembers the response of a request made with an
// Idempotency-Key so a retry gets the same answer instead of a second order.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrInFlight  = errors.New("a request with this idempotency key is still in progress")
	ErrKeyReused = errors.New("idempotency key was already used with a different request body")
)

const (
	statePending = "pending"
	stateDone    = "done"
)

type Record struct {
	State       string          `json:"state"`
	Token       string          `json:"token"`
	Fingerprint string          `json:"fingerprint"`
	Status      int             `json:"status,omitempty"`
	Body        json.RawMessage `json:"body,omitempty"`
}

func (r *Record) Done() bool {
	return r.State == stateDone
}

// Claim is held by the request that won the key.
type Claim struct {
	key         string
	token       string
	fingerprint string
}

type Store struct {
	client *redis.Client
	ttl    time.Duration
}

func NewStore(client *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Store{client: client, ttl: ttl}
}

func redisKey(userID int64, key string) string {
	return fmt.Sprintf("idempotency:%d:%s", userID, key)
}

// Fingerprint identifies a request body so a reused key can be told apart
// from a genuine retry.
func Fingerprint(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// Begin claims key for userID. When another request already owns it, the
// stored record is returned instead: finished ones can be replayed, pending
// ones yield ErrInFlight. A record made for a different fingerprint yields
// ErrKeyReused.
func (s *Store) Begin(ctx context.Context, userID int64, key, fingerprint string) (*Claim, *Record, error) {
	rk := redisKey(userID, key)
	token := uuid.NewString()

	pending, err := json.Marshal(Record{State: statePending, Token: token, Fingerprint: fingerprint})
	if err != nil {
		return nil, nil, err
	}

	ok, err := s.client.SetNX(ctx, rk, pending, s.ttl).Result()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to claim idempotency key: %w", err)
	}
	if ok {
		return &Claim{key: rk, token: token, fingerprint: fingerprint}, nil, nil
	}

	raw, err := s.client.Get(ctx, rk).Bytes()
	if err != nil {
		// the holder released it between our SETNX and GET
		if errors.Is(err, redis.Nil) {
			return nil, nil, ErrInFlight
		}
		return nil, nil, fmt.Errorf("failed to read idempotency key: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, nil, fmt.Errorf("corrupt idempotency record: %w", err)
	}
	if rec.Fingerprint != fingerprint {
		return nil, nil, ErrKeyReused
	}
	if !rec.Done() {
		return nil, nil, ErrInFlight
	}

	return nil, &rec, nil
}

// compareAndSet replaces the value only while the caller still owns the key.
var compareAndSet = redis.NewScript(`
local current = redis.call("GET", KEYS[1])
if not current then return 0 end
if cjson.decode(current)["token"] ~= ARGV[1] then return 0 end
if ARGV[2] == "" then
	redis.call("DEL", KEYS[1])
else
	redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
end
return 1
`)

// Complete stores the response for replays.
func (s *Store) Complete(ctx context.Context, c *Claim, status int, body []byte) error {
	done, err := json.Marshal(Record{
		State:       stateDone,
		Token:       c.token,
		Fingerprint: c.fingerprint,
		Status:      status,
		Body:        body,
	})
	if err != nil {
		return err
	}

	if err := compareAndSet.Run(ctx, s.client, []string{c.key}, c.token, string(done), s.ttl.Milliseconds()).Err(); err != nil {
		return fmt.Errorf("failed to store idempotent response: %w", err)
	}
	return nil
}

// Release frees the key so the caller may retry after a failure.
func (s *Store) Release(ctx context.Context, c *Claim) error {
	if err := compareAndSet.Run(ctx, s.client, []string{c.key}, c.token, "", 0).Err(); err != nil {
		return fmt.Errorf("failed to release idempotency key: %w", err)
	}
	return nil
}
