package repository

// confirm_store.go implements the two-step confirmation required before
// destructive operations (task delete, user delete).  The first request
// issues a short-lived random token; the destructive call only proceeds
// when the same caller presents that token before it expires.  Tokens
// are held in Redis so confirmations survive across instances; when no
// Redis client is available the store degrades to an in-process map.

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ConfirmTTL is how long a confirmation token stays valid.  Long enough
// for a user to read a confirmation prompt, short enough that stale
// confirmations cannot fire much later.
const ConfirmTTL = 60 * time.Second

// ConfirmStore issues and consumes one-shot confirmation tokens.
type ConfirmStore struct {
	rdb *redis.Client

	mu  sync.Mutex
	mem map[string]memToken
}

type memToken struct {
	token     string
	expiresAt time.Time
}

// NewConfirmStore returns a store backed by the given Redis client.
// A nil client selects the in-memory fallback.
func NewConfirmStore(rdb *redis.Client) *ConfirmStore {
	return &ConfirmStore{rdb: rdb, mem: make(map[string]memToken)}
}

// confirmKey scopes a token to the operation kind, the target entity
// and the requesting user, so one user's confirmation can never
// authorize another's delete.
func confirmKey(kind string, targetID, userID uint64) string {
	return fmt.Sprintf("confirm:%s:%d:%d", kind, targetID, userID)
}

// Issue creates a fresh token for the given operation and stores it
// with ConfirmTTL.  Re-issuing overwrites any previous token.
func (s *ConfirmStore) Issue(ctx context.Context, kind string, targetID, userID uint64) (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	token := hex.EncodeToString(buf)
	key := confirmKey(kind, targetID, userID)

	if s.rdb != nil {
		if err := s.rdb.SetEx(ctx, key, token, ConfirmTTL).Err(); err != nil {
			return "", err
		}
		return token, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()
	s.mem[key] = memToken{token: token, expiresAt: time.Now().Add(ConfirmTTL)}
	return token, nil
}

// Consume validates and deletes a token in one step.  It returns true
// only when the presented token matches the stored one and has not
// expired; the token is removed regardless of the comparison outcome
// so it cannot be retried.
func (s *ConfirmStore) Consume(ctx context.Context, kind string, targetID, userID uint64, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	key := confirmKey(kind, targetID, userID)

	if s.rdb != nil {
		stored, err := s.rdb.GetDel(ctx, key).Result()
		if err == redis.Nil {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return subtle.ConstantTimeCompare([]byte(stored), []byte(token)) == 1, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	ent, ok := s.mem[key]
	if !ok {
		return false, nil
	}
	delete(s.mem, key)
	if time.Now().After(ent.expiresAt) {
		return false, nil
	}
	return subtle.ConstantTimeCompare([]byte(ent.token), []byte(token)) == 1, nil
}

// sweepLocked drops expired fallback entries.  Called with mu held.
func (s *ConfirmStore) sweepLocked() {
	now := time.Now()
	for k, v := range s.mem {
		if now.After(v.expiresAt) {
			delete(s.mem, k)
		}
	}
}
