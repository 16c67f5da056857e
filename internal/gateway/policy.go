// Package gateway implements the streaming pass-through to the
// upstream query assistant backend.
package gateway

import (
	"strings"
	"time"
)

// Tier is a named timeout budget selected by request route.
type Tier string

const (
	TierHealth  Tier = "health"
	TierDefault Tier = "default"
	TierChat    Tier = "chat"
)

// TimeoutPolicy maps path prefixes to timeout tiers. Read-only after
// startup; safe for concurrent use.
type TimeoutPolicy struct {
	connect  time.Duration
	budgets  map[Tier]time.Duration
	prefixes []prefixRule
}

type prefixRule struct {
	prefix string
	tier   Tier
}

// NewTimeoutPolicy builds the route policy from per-tier total budgets
// and a shared connect budget. Budgets must satisfy health ≤ default ≤
// chat; a chat request never times out sooner than a health probe.
func NewTimeoutPolicy(connect, health, deflt, chat time.Duration) *TimeoutPolicy {
	if deflt < health {
		deflt = health
	}
	if chat < deflt {
		chat = deflt
	}
	return &TimeoutPolicy{
		connect: connect,
		budgets: map[Tier]time.Duration{
			TierHealth:  health,
			TierDefault: deflt,
			TierChat:    chat,
		},
		prefixes: []prefixRule{
			{prefix: "/api/chat", tier: TierChat},
			{prefix: "/api/health", tier: TierHealth},
			{prefix: "/api/healthz", tier: TierHealth},
		},
	}
}

// TierFor selects the tier for a request path.
func (p *TimeoutPolicy) TierFor(path string) Tier {
	for _, rule := range p.prefixes {
		if strings.HasPrefix(path, rule.prefix) {
			return rule.tier
		}
	}
	return TierDefault
}

// Total returns the total request budget for a tier.
func (p *TimeoutPolicy) Total(tier Tier) time.Duration {
	return p.budgets[tier]
}

// Connect returns the connect budget shared by all tiers.
func (p *TimeoutPolicy) Connect() time.Duration {
	return p.connect
}
