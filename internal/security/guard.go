// Package security is a per-node IP guard: sliding-window rate limits plus
// temporary bans after repeated auth failures. State is in-process on
// purpose; bans are cheap and local.
package security

import (
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

type Guard struct {
	enabled      bool
	maxBody      int64
	apiPerMin    int
	publicPerMin int
	banAfter     int
	banFor       time.Duration

	mu    sync.Mutex
	hits  map[string][]time.Time
	fails map[string]int
	bans  map[string]time.Time
}

// NewFromEnv builds a guard from SECURITY_* env vars. Unset means enabled
// with defaults; SECURITY_ENABLED=0 turns it off entirely.
func NewFromEnv() *Guard {
	g := &Guard{
		enabled:      envBool("SECURITY_ENABLED", true),
		maxBody:      envInt64("SECURITY_MAX_BODY_BYTES", 1<<20),
		apiPerMin:    int(envInt64("SECURITY_API_PER_MIN", 120)),
		publicPerMin: int(envInt64("SECURITY_PUBLIC_PER_MIN", 300)),
		banAfter:     int(envInt64("SECURITY_BAN_AFTER_FAILS", 10)),
		banFor:       time.Duration(envInt64("SECURITY_BAN_MINUTES", 15)) * time.Minute,
		hits:         map[string][]time.Time{},
		fails:        map[string]int{},
		bans:         map[string]time.Time{},
	}
	return g
}

func (g *Guard) Enabled() bool { return g != nil && g.enabled }

func (g *Guard) MaxBodyBytes() int64 { return g.maxBody }

// ClientIP prefers the first X-Forwarded-For hop (the panel always sits
// behind a proxy in production), falling back to the socket address.
func (g *Guard) ClientIP(r *http.Request) string {
	if xff := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); xff != "" {
		parts := strings.Split(xff, ",")
		if ip := strings.TrimSpace(parts[0]); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (g *Guard) IsBanned(ip string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	until, ok := g.bans[ip]
	if !ok {
		return false
	}
	if time.Now().After(until) {
		delete(g.bans, ip)
		delete(g.fails, ip)
		return false
	}
	return true
}

func (g *Guard) AllowAPI(ip string) bool    { return g.allow("api:"+ip, g.apiPerMin) }
func (g *Guard) AllowPublic(ip string) bool { return g.allow("pub:"+ip, g.publicPerMin) }

// RecordAuthFail counts 401s per IP; crossing the threshold bans the IP for
// the configured window.
func (g *Guard) RecordAuthFail(ip string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fails[ip]++
	if g.banAfter > 0 && g.fails[ip] >= g.banAfter {
		g.bans[ip] = time.Now().Add(g.banFor)
	}
}

func (g *Guard) allow(key string, perMin int) bool {
	if perMin <= 0 {
		return true
	}
	now := time.Now()
	cutoff := now.Add(-time.Minute)

	g.mu.Lock()
	defer g.mu.Unlock()

	window := g.hits[key]
	kept := window[:0]
	for _, t := range window {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	if len(kept) >= perMin {
		g.hits[key] = kept
		return false
	}
	g.hits[key] = append(kept, now)
	return true
}

func envBool(key string, def bool) bool {
	switch strings.TrimSpace(os.Getenv(key)) {
	case "1", "true", "yes":
		return true
	case "0", "false", "no":
		return false
	}
	return def
}

func envInt64(key string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return def
	}
	return n
}
