package utils

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cppla/bookclub/config"
)

func regKey(parts ...string) string {
	return "reg:" + strings.Join(parts, ":")
}

var (
	memCooldown = newMemoryTTL()
	memDailyMu  sync.Mutex
	memDaily    = map[string]int{}
)

// RegistrationCooldownTry enforces a short cooldown between attempts per IP.
func RegistrationCooldownTry(ip string) bool {
	sec := config.Get().RegisterAttemptCooldownSec
	if sec <= 0 {
		return true
	}
	ttl := time.Duration(sec) * time.Second
	key := regKey("cooldown", ip)
	if cli := GetRedis(); cli != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
		defer cancel()
		ok, err := cli.SetNX(ctx, key, "1", ttl).Result()
		if err == nil {
			return ok
		}
	}
	if memCooldown.has(key) {
		return false
	}
	memCooldown.put(key, ttl)
	return true
}

// RegistrationDailyLimitCheck allows up to N successful registrations per day per IP.
func RegistrationDailyLimitCheck(ip string) bool {
	limit := config.Get().RegisterMaxPerIPPerDay
	if limit <= 0 {
		return true
	}
	key := regKey("succday", ip, time.Now().Format("20060102"))
	if cli := GetRedis(); cli != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
		defer cancel()
		n, err := cli.Get(ctx, key).Int()
		if err == nil || err == redis.Nil {
			return n < limit
		}
	}
	memDailyMu.Lock()
	defer memDailyMu.Unlock()
	return memDaily[key] < limit
}

// RegistrationDailyIncrement increments the success counter for today.
func RegistrationDailyIncrement(ip string) {
	key := regKey("succday", ip, time.Now().Format("20060102"))
	if cli := GetRedis(); cli != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
		defer cancel()
		if err := cli.Incr(ctx, key).Err(); err == nil {
			_ = cli.Expire(ctx, key, 24*time.Hour).Err()
			return
		}
	}
	memDailyMu.Lock()
	memDaily[key]++
	memDailyMu.Unlock()
}
