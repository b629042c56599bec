package adapter

import "math/rand/v2"

// DefaultUserAgent is sent when no user agents are configured
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/118.0.0.0 Safari/537.36"

// UserAgentSource picks the User-Agent header for a request
type UserAgentSource interface {
	UserAgent() string
}

// RandomUserAgents picks uniformly from a list
type RandomUserAgents struct {
	agents []string
}

// NewUserAgentSource creates a source over agents, falling back to DefaultUserAgent
func NewUserAgentSource(agents []string) *RandomUserAgents {
	if len(agents) == 0 {
		agents = []string{DefaultUserAgent}
	}
	return &RandomUserAgents{agents: append([]string(nil), agents...)}
}

// UserAgent implements UserAgentSource
func (s *RandomUserAgents) UserAgent() string {
	return s.agents[rand.IntN(len(s.agents))]
}
