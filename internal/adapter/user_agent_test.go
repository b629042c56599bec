package adapter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserAgentSource(t *testing.T) {
	t.Run("falls back to the default agent", func(t *testing.T) {
		assert.Equal(t, DefaultUserAgent, NewUserAgentSource(nil).UserAgent())
	})

	t.Run("picks from the configured agents", func(t *testing.T) {
		agents := []string{"agent-a", "agent-b"}
		src := NewUserAgentSource(agents)
		agents[0] = "mutated"

		for i := 0; i < 50; i++ {
			assert.Contains(t, []string{"agent-a", "agent-b"}, src.UserAgent())
		}
	})
}
