package ratelimit

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Provider names used by the post generator.
const (
	Gemini  = "gemini"
	OpenAI  = "openai"
	SerpAPI = "serpapi"
)

// DailyLimiter caps paid API calls per provider and in total. Counters reset
// 24h after the previous reset. A limit of 0 means unlimited.
type DailyLimiter struct {
	mu        sync.Mutex
	limits    map[string]int
	counts    map[string]int
	maxTotal  int
	total     int
	resetTime time.Time
	now       func() time.Time
	log       *slog.Logger

	cacheHits   int
	cacheMisses int
}

func NewDailyLimiter(limits map[string]int, maxTotal int) *DailyLimiter {
	rl := &DailyLimiter{
		limits:   make(map[string]int, len(limits)),
		counts:   make(map[string]int),
		maxTotal: maxTotal,
		now:      time.Now,
		log:      slog.Default(),
	}
	for k, v := range limits {
		rl.limits[k] = v
	}
	rl.resetTime = rl.now().Add(24 * time.Hour)
	return rl
}

// CanUse reports whether provider still has quota.
func (rl *DailyLimiter) CanUse(provider string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.checkReset()
	return rl.allowed(provider) == nil
}

// Use consumes one unit of provider quota or returns an error when exhausted.
func (rl *DailyLimiter) Use(provider string) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.checkReset()
	if err := rl.allowed(provider); err != nil {
		rl.log.Warn("rate limit reached", "provider", provider, "error", err)
		return err
	}

	rl.counts[provider]++
	rl.total++
	return nil
}

func (rl *DailyLimiter) allowed(provider string) error {
	if max := rl.limits[provider]; max > 0 && rl.counts[provider] >= max {
		return fmt.Errorf("%s daily limit reached (%d/%d)", provider, rl.counts[provider], max)
	}
	if rl.maxTotal > 0 && rl.total >= rl.maxTotal {
		return fmt.Errorf("total daily limit reached (%d/%d)", rl.total, rl.maxTotal)
	}
	return nil
}

func (rl *DailyLimiter) RecordCacheHit() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.cacheHits++
}

func (rl *DailyLimiter) RecordCacheMiss() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.cacheMisses++
}

func (rl *DailyLimiter) GetStats() map[string]interface{} {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	stats := map[string]interface{}{
		"total_used":   rl.total,
		"total_limit":  rl.maxTotal,
		"cache_hits":   rl.cacheHits,
		"cache_misses": rl.cacheMisses,
		"reset_time":   rl.resetTime.Format(time.RFC3339),
	}
	for p, max := range rl.limits {
		stats[p+"_used"] = rl.counts[p]
		stats[p+"_limit"] = max
	}
	return stats
}

// checkReset resets counters if reset time has passed
func (rl *DailyLimiter) checkReset() {
	now := rl.now()
	if now.After(rl.resetTime) {
		rl.log.Info("resetting daily API counters", "total_used", rl.total)
		rl.counts = make(map[string]int)
		rl.total = 0
		rl.cacheHits = 0
		rl.cacheMisses = 0
		rl.resetTime = now.Add(24 * time.Hour)
	}
}
