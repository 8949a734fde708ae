package resilience

import (
	"sync"
	"time"

	"github.com/DqkrLord0Xerod/Multistage-Intelligence-Looping-System/internal/thinking/metrics"
)

// BreakerState represents the state of a circuit breaker.
type BreakerState int

const (
	StateClosed   BreakerState = iota // calls pass through normally
	StateOpen                         // calls are refused immediately
	StateHalfOpen                     // a bounded budget of probe calls is allowed
)

// String returns the human-readable name for the breaker state.
func (s BreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// BreakerConfig configures per-endpoint circuit breaking.
type BreakerConfig struct {
	FailureThreshold    int           `yaml:"failure_threshold"`      // consecutive failures before opening
	OpenDuration        time.Duration `yaml:"open_duration"`          // cooldown before half-open probes
	HalfOpenTrialBudget int           `yaml:"half_open_trial_budget"` // concurrent probes allowed while half-open
	HalfOpenSuccesses   int           `yaml:"half_open_successes"`    // probe successes required to re-close
}

// DefaultBreakerConfig provides sensible defaults.
var DefaultBreakerConfig = BreakerConfig{
	FailureThreshold:    5,
	OpenDuration:        30 * time.Second,
	HalfOpenTrialBudget: 2,
	HalfOpenSuccesses:   2,
}

// Breaker is a circuit breaker for one upstream endpoint. State only
// changes through Allow/RecordSuccess/RecordFailure, never by direct
// field assignment.
type Breaker struct {
	mu sync.Mutex

	endpoint string
	cfg      BreakerConfig

	state             BreakerState
	consecutiveFails  int
	halfOpenSuccesses int
	halfOpenInFlight  int
	openedAt          time.Time

	// Injectable clock for deterministic tests.
	now func() time.Time
}

// NewBreaker creates a closed breaker for the given endpoint.
func NewBreaker(endpoint string, cfg BreakerConfig) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultBreakerConfig.FailureThreshold
	}
	if cfg.OpenDuration <= 0 {
		cfg.OpenDuration = DefaultBreakerConfig.OpenDuration
	}
	if cfg.HalfOpenTrialBudget <= 0 {
		cfg.HalfOpenTrialBudget = DefaultBreakerConfig.HalfOpenTrialBudget
	}
	if cfg.HalfOpenSuccesses <= 0 {
		cfg.HalfOpenSuccesses = DefaultBreakerConfig.HalfOpenSuccesses
	}
	return &Breaker{
		endpoint: endpoint,
		cfg:      cfg,
		state:    StateClosed,
		now:      time.Now,
	}
}

// Allow reports whether a call may proceed. In half-open state it also
// reserves one probe slot; callers that get true must follow up with
// RecordSuccess, RecordFailure, or RecordCancelled.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true

	case StateOpen:
		if b.now().Sub(b.openedAt) < b.cfg.OpenDuration {
			metrics.BreakerRefusals.WithLabelValues(b.endpoint).Inc()
			return false
		}
		b.transition(StateHalfOpen)
		b.halfOpenInFlight = 1
		return true

	case StateHalfOpen:
		if b.halfOpenInFlight < b.cfg.HalfOpenTrialBudget {
			b.halfOpenInFlight++
			return true
		}
		// Probe budget exhausted: treated as if open.
		metrics.BreakerRefusals.WithLabelValues(b.endpoint).Inc()
		return false

	default:
		return false
	}
}

// RecordSuccess records a successful call.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		b.consecutiveFails = 0
	case StateHalfOpen:
		b.releaseProbe()
		b.halfOpenSuccesses++
		if b.halfOpenSuccesses >= b.cfg.HalfOpenSuccesses {
			b.transition(StateClosed)
		}
	}
}

// RecordFailure records a failed call. Opening only happens after the
// configured number of consecutive failures while closed; any half-open
// probe failure re-opens immediately and resets the cooldown timer.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		b.consecutiveFails++
		if b.consecutiveFails >= b.cfg.FailureThreshold {
			b.transition(StateOpen)
		}
	case StateHalfOpen:
		b.releaseProbe()
		b.transition(StateOpen)
	}
}

// RecordCancelled releases a reserved probe slot without counting the
// attempt as success or failure. Cancelled attempts record neither.
func (b *Breaker) RecordCancelled() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateHalfOpen {
		b.releaseProbe()
	}
}

// State returns the current breaker state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// must be called with the lock held
func (b *Breaker) releaseProbe() {
	if b.halfOpenInFlight > 0 {
		b.halfOpenInFlight--
	}
}

// must be called with the lock held
func (b *Breaker) transition(next BreakerState) {
	b.state = next
	b.halfOpenSuccesses = 0
	b.halfOpenInFlight = 0

	switch next {
	case StateOpen:
		b.openedAt = b.now()
	case StateClosed:
		b.consecutiveFails = 0
	}

	metrics.BreakerTransitions.WithLabelValues(b.endpoint, next.String()).Inc()
}
