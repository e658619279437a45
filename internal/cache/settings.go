// Package cache keeps the deposit settings hot. The cache is an explicit
// object with an injected clock so tests can drive expiry; when Redis is
// configured the loaded map is written through with the same TTL so every
// panel node serves identical settings.
package cache

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"kassa_panel/internal/db"
)

const redisKey = "kassa:settings"

type Clock func() time.Time

// Loader is the persistent source of truth; *db.DB satisfies it.
type Loader interface {
	AllSettings(ctx context.Context) (map[string]string, error)
}

type Settings struct {
	db  Loader
	rdb *redis.Client
	ttl time.Duration
	now Clock
	log *zap.SugaredLogger

	mu       sync.RWMutex
	cached   map[string]string
	cachedAt time.Time
}

func NewSettings(database Loader, rdb *redis.Client, ttl time.Duration, now Clock, log *zap.SugaredLogger) *Settings {
	if now == nil {
		now = time.Now
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Settings{db: database, rdb: rdb, ttl: ttl, now: now, log: log}
}

// EnabledBanks returns the bank names deposits are advertised for. Empty
// settings mean "all" and the caller substitutes the canonical list.
func (s *Settings) EnabledBanks(ctx context.Context) []string {
	raw := s.get(ctx, db.SettingDepositBanks)
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (s *Settings) DepositsEnabled(ctx context.Context) bool {
	switch strings.ToLower(s.get(ctx, db.SettingDepositsEnabled)) {
	case "0", "false", "no", "off":
		return false
	}
	return true
}

// MaxDeposit returns the configured deposit ceiling, or fallback when the
// setting is absent or unparseable.
func (s *Settings) MaxDeposit(ctx context.Context, fallback decimal.Decimal) decimal.Decimal {
	raw := s.get(ctx, db.SettingMaxDepositAmount)
	if raw == "" {
		return fallback
	}
	d, err := decimal.NewFromString(raw)
	if err != nil || !d.IsPositive() {
		return fallback
	}
	return d
}

// Invalidate drops both cache layers; the next read reloads from Postgres.
func (s *Settings) Invalidate(ctx context.Context) {
	s.mu.Lock()
	s.cached = nil
	s.mu.Unlock()
	if s.rdb != nil {
		if err := s.rdb.Del(ctx, redisKey).Err(); err != nil {
			s.log.Warnf("settings cache: redis del: %v", err)
		}
	}
}

func (s *Settings) get(ctx context.Context, key string) string {
	return s.load(ctx)[key]
}

func (s *Settings) load(ctx context.Context) map[string]string {
	now := s.now()

	s.mu.RLock()
	if s.cached != nil && now.Sub(s.cachedAt) < s.ttl {
		m := s.cached
		s.mu.RUnlock()
		return m
	}
	s.mu.RUnlock()

	m := s.loadRemote(ctx)

	s.mu.Lock()
	s.cached = m
	s.cachedAt = now
	s.mu.Unlock()
	return m
}

func (s *Settings) loadRemote(ctx context.Context) map[string]string {
	if s.rdb != nil {
		if raw, err := s.rdb.Get(ctx, redisKey).Result(); err == nil {
			var m map[string]string
			if json.Unmarshal([]byte(raw), &m) == nil {
				return m
			}
		} else if err != redis.Nil {
			s.log.Warnf("settings cache: redis get: %v", err)
		}
	}

	m, err := s.db.AllSettings(ctx)
	if err != nil {
		s.log.Warnf("settings cache: db load: %v", err)
		return map[string]string{}
	}

	if s.rdb != nil {
		if raw, err := json.Marshal(m); err == nil {
			if err := s.rdb.Set(ctx, redisKey, raw, s.ttl).Err(); err != nil {
				s.log.Warnf("settings cache: redis set: %v", err)
			}
		}
	}
	return m
}
