package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Default pacer configuration values.
const (
	DefaultBaseDelay = 2 * time.Second
	DefaultMaxDelay  = time.Minute
)

// Pacer spaces out consecutive provider calls. The delay doubles with every
// consecutive failure up to MaxDelay and drops back to BaseDelay on success.
type Pacer struct {
	baseDelay        time.Duration
	maxDelay         time.Duration
	currentDelay     time.Duration
	consecutiveFails int
	mu               sync.Mutex
}

// PacerConfig holds configuration for a Pacer.
type PacerConfig struct {
	// BaseDelay is the pause between calls while they succeed. Zero disables pacing
	// until the first failure, which then waits DefaultBaseDelay.
	BaseDelay time.Duration

	// MaxDelay caps the backoff. Default: 1m.
	MaxDelay time.Duration
}

// Validate checks if the configuration is valid.
func (c *PacerConfig) Validate() error {
	if c.BaseDelay < 0 {
		return errors.New("base delay cannot be negative")
	}
	if c.MaxDelay < 0 {
		return errors.New("max delay cannot be negative")
	}
	if c.MaxDelay > 0 && c.BaseDelay > c.MaxDelay {
		return errors.New("base delay cannot exceed max delay")
	}
	return nil
}

// NewPacer creates a new pacer with the given configuration.
func NewPacer(cfg *PacerConfig) (*Pacer, error) {
	if cfg == nil {
		cfg = &PacerConfig{}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	maxDelay := cfg.MaxDelay
	if maxDelay == 0 {
		maxDelay = DefaultMaxDelay
	}

	return &Pacer{
		baseDelay:    cfg.BaseDelay,
		maxDelay:     maxDelay,
		currentDelay: cfg.BaseDelay,
	}, nil
}

// Pause blocks for the current delay or until ctx is done.
func (p *Pacer) Pause(ctx context.Context) error {
	delay := p.CurrentDelay()
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RecordSuccess resets the backoff.
func (p *Pacer) RecordSuccess() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.consecutiveFails = 0
	p.currentDelay = p.baseDelay
}

// RecordFailure doubles the delay, capped at MaxDelay.
func (p *Pacer) RecordFailure() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.consecutiveFails++

	newDelay := p.baseDelay
	if newDelay == 0 {
		newDelay = DefaultBaseDelay / 2
	}
	for i := 0; i < p.consecutiveFails; i++ {
		newDelay *= 2
		if newDelay >= p.maxDelay {
			newDelay = p.maxDelay
			break
		}
	}
	p.currentDelay = newDelay
}

// CurrentDelay returns the delay the next Pause waits for.
func (p *Pacer) CurrentDelay() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.currentDelay
}

// ConsecutiveFailures returns the number of failures since the last success.
func (p *Pacer) ConsecutiveFailures() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.consecutiveFails
}
