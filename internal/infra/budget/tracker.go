// Package budget tracks upstream call and token spend so the engine can
// refuse to start rounds that would blow the daily allowance.
package budget

import (
	"sync"
	"time"

	"github.com/DqkrLord0Xerod/Multistage-Intelligence-Looping-System/internal/core/domain"
)

// UsageStats holds spend statistics.
type UsageStats struct {
	TotalCalls      int
	TotalTokens     int
	DailyCallLimit  int
	RemainingCalls  int
	UsagePercentage float64
	EndpointCalls   map[string]int
	NextResetAt     time.Time
}

// Config holds budget configuration.
type Config struct {
	DailyCallQuota int `yaml:"daily_call_quota"` // 0 = unlimited
}

// Tracker accounts calls and tokens per endpoint and per conversation.
// Counters reset at local midnight, matching provider billing windows.
type Tracker struct {
	mu             sync.RWMutex
	dailyCallQuota int
	resetTime      time.Time

	totalCalls    int
	totalTokens   int
	endpointCalls map[string]int
	convCost      map[string]domain.CallCost
}

// NewTracker creates a tracker with the given daily call quota.
func NewTracker(cfg Config) *Tracker {
	return &Tracker{
		dailyCallQuota: cfg.DailyCallQuota,
		resetTime:      nextMidnight(time.Now()),
		endpointCalls:  make(map[string]int),
		convCost:       make(map[string]domain.CallCost),
	}
}

// Record accounts the cost of completed upstream work.
func (t *Tracker) Record(conversationID, endpoint string, cost domain.CallCost) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if time.Now().After(t.resetTime) {
		t.resetLocked()
	}

	t.totalCalls += cost.Calls
	t.totalTokens += cost.TotalTokens()
	t.endpointCalls[endpoint] += cost.Calls
	t.convCost[conversationID] = t.convCost[conversationID].Add(cost)
}

// CanMakeCalls reports whether n more upstream calls fit in the quota.
func (t *Tracker) CanMakeCalls(n int) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.dailyCallQuota <= 0 {
		return true
	}
	return t.totalCalls+n <= t.dailyCallQuota
}

// ConversationCost returns the accumulated cost for one conversation.
func (t *Tracker) ConversationCost(conversationID string) domain.CallCost {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.convCost[conversationID]
}

// Usage returns overall spend statistics.
func (t *Tracker) Usage() UsageStats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	stats := UsageStats{
		TotalCalls:     t.totalCalls,
		TotalTokens:    t.totalTokens,
		DailyCallLimit: t.dailyCallQuota,
		EndpointCalls:  make(map[string]int, len(t.endpointCalls)),
		NextResetAt:    t.resetTime,
	}
	for endpoint, calls := range t.endpointCalls {
		stats.EndpointCalls[endpoint] = calls
	}
	if t.dailyCallQuota > 0 {
		stats.RemainingCalls = max(0, t.dailyCallQuota-t.totalCalls)
		stats.UsagePercentage = float64(t.totalCalls) / float64(t.dailyCallQuota) * 100
	}
	return stats
}

// Reset clears all counters.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resetLocked()
}

// must be called with the lock held
func (t *Tracker) resetLocked() {
	t.totalCalls = 0
	t.totalTokens = 0
	t.endpointCalls = make(map[string]int)
	t.convCost = make(map[string]domain.CallCost)
	t.resetTime = nextMidnight(time.Now())
}

func nextMidnight(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, now.Location())
}
