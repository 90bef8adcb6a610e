package utils

import (
	"context"
	"sync"
	"time"
)

const (
	blacklistPrefix  = "jwt:blacklist:"
	oauthStatePrefix = "oauth:state:"
)

// memoryTTL is the single-instance fallback used when Redis is not reachable.
type memoryTTL struct {
	mu      sync.Mutex
	entries map[string]time.Time
}

func newMemoryTTL() *memoryTTL {
	return &memoryTTL{entries: map[string]time.Time{}}
}

func (m *memoryTTL) put(key string, ttl time.Duration) {
	m.mu.Lock()
	m.entries[key] = time.Now().Add(ttl)
	m.mu.Unlock()
}

func (m *memoryTTL) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	exp, ok := m.entries[key]
	if !ok {
		return false
	}
	if time.Now().After(exp) {
		delete(m.entries, key)
		return false
	}
	return true
}

// take reports whether key was live and removes it either way.
func (m *memoryTTL) take(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	exp, ok := m.entries[key]
	delete(m.entries, key)
	return ok && time.Now().Before(exp)
}

var (
	memBlacklist = newMemoryTTL()
	memStates    = newMemoryTTL()
)

// BlacklistToken revokes a token until its natural expiry.
func BlacklistToken(token string, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	if rc := GetRedis(); rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := rc.Set(ctx, blacklistPrefix+token, "1", ttl).Err(); err == nil {
			return
		}
	}
	memBlacklist.put(token, ttl)
}

// IsTokenBlacklisted checks if a token was revoked before natural expiration.
func IsTokenBlacklisted(token string) bool {
	if rc := GetRedis(); rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		n, err := rc.Exists(ctx, blacklistPrefix+token).Result()
		if err == nil && n > 0 {
			return true
		}
	}
	return memBlacklist.has(token)
}

// SaveState stores an OAuth state token with TTL to mitigate CSRF.
func SaveState(state string, ttl time.Duration) {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if rc := GetRedis(); rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := rc.Set(ctx, oauthStatePrefix+state, "1", ttl).Err(); err == nil {
			return
		}
	}
	memStates.put(state, ttl)
}

// ConsumeState validates and removes a state token. A state is single-use.
func ConsumeState(state string) bool {
	if state == "" {
		return false
	}
	if rc := GetRedis(); rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		key := oauthStatePrefix + state
		if v, err := rc.GetDel(ctx, key).Result(); err == nil {
			return v != ""
		}
		// GETDEL needs Redis >= 6.2
		script := `local v=redis.call('GET', KEYS[1]); if v then redis.call('DEL', KEYS[1]); end; return v`
		if res, err := rc.Eval(ctx, script, []string{key}).Result(); err == nil && res != nil {
			return true
		}
	}
	return memStates.take(state)
}
