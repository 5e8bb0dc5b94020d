package oauth

import (
    "context"
    "crypto/rand"
    "encoding/base64"
    "sync"
    "time"

    "github.com/redis/go-redis/v9"
)

// stateTTL bounds how long a login may sit on the consent page before the
// callback is rejected.
const stateTTL = 10 * time.Minute

// StateStore issues and consumes single-use anti-forgery state tokens for
// the login redirect.  States live in Redis with a TTL so that the
// callback can land on any instance.  Without a Redis client the store
// degrades to an in-process map, which is fine for a single instance.
type StateStore struct {
    rdb *redis.Client

    mu    sync.Mutex
    local map[string]time.Time
}

func NewStateStore(rdb *redis.Client) *StateStore {
    return &StateStore{rdb: rdb, local: make(map[string]time.Time)}
}

// New mints a random state, records it and returns it for inclusion in
// the consent URL.
func (s *StateStore) New(ctx context.Context) (string, error) {
    buf := make([]byte, 32)
    if _, err := rand.Read(buf); err != nil {
        return "", err
    }
    state := base64.RawURLEncoding.EncodeToString(buf)

    if s.rdb != nil {
        if err := s.rdb.Set(ctx, "oauth:state:"+state, 1, stateTTL).Err(); err != nil {
            return "", err
        }
        return state, nil
    }

    s.mu.Lock()
    defer s.mu.Unlock()
    now := time.Now()
    // Abandoned logins never call Consume, so sweep expired states here to
    // keep the map bounded.
    for k, exp := range s.local {
        if now.After(exp) {
            delete(s.local, k)
        }
    }
    s.local[state] = now.Add(stateTTL)
    return state, nil
}

// Consume validates a state returned by the provider callback and removes
// it, so every state authorizes exactly one callback.
func (s *StateStore) Consume(ctx context.Context, state string) bool {
    if state == "" {
        return false
    }
    if s.rdb != nil {
        n, err := s.rdb.Del(ctx, "oauth:state:"+state).Result()
        return err == nil && n == 1
    }

    s.mu.Lock()
    defer s.mu.Unlock()
    exp, ok := s.local[state]
    if !ok {
        return false
    }
    delete(s.local, state)
    return time.Now().Before(exp)
}
