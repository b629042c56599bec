package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPacer(t *testing.T) {
	t.Run("applies defaults when not specified", func(t *testing.T) {
		p, err := NewPacer(nil)
		require.NoError(t, err)
		assert.Equal(t, time.Duration(0), p.CurrentDelay())
		assert.Equal(t, DefaultMaxDelay, p.maxDelay)
	})

	t.Run("rejects invalid config", func(t *testing.T) {
		tests := []struct {
			name string
			cfg  PacerConfig
		}{
			{"negative base", PacerConfig{BaseDelay: -time.Second}},
			{"negative max", PacerConfig{MaxDelay: -time.Second}},
			{"base above max", PacerConfig{BaseDelay: time.Minute, MaxDelay: time.Second}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := NewPacer(&tt.cfg)
				assert.Error(t, err)
			})
		}
	})
}

func TestPacer_Backoff(t *testing.T) {
	p, err := NewPacer(&PacerConfig{BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second})
	require.NoError(t, err)

	p.RecordFailure()
	assert.Equal(t, 200*time.Millisecond, p.CurrentDelay())
	p.RecordFailure()
	assert.Equal(t, 400*time.Millisecond, p.CurrentDelay())
	p.RecordFailure()
	p.RecordFailure()
	assert.Equal(t, time.Second, p.CurrentDelay())
	assert.Equal(t, 4, p.ConsecutiveFailures())

	p.RecordSuccess()
	assert.Equal(t, 100*time.Millisecond, p.CurrentDelay())
	assert.Equal(t, 0, p.ConsecutiveFailures())
}

func TestPacer_ZeroBaseBacksOffOnFailure(t *testing.T) {
	p, err := NewPacer(&PacerConfig{MaxDelay: 10 * time.Second})
	require.NoError(t, err)

	p.RecordFailure()
	assert.Equal(t, DefaultBaseDelay, p.CurrentDelay())
	p.RecordSuccess()
	assert.Equal(t, time.Duration(0), p.CurrentDelay())
}

func TestPacer_Pause(t *testing.T) {
	p, err := NewPacer(&PacerConfig{BaseDelay: 20 * time.Millisecond})
	require.NoError(t, err)

	start := time.Now()
	require.NoError(t, p.Pause(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)

	p.RecordFailure() // 40ms
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.Pause(ctx), context.Canceled)

	none, err := NewPacer(nil)
	require.NoError(t, err)
	assert.NoError(t, none.Pause(context.Background()))
}
