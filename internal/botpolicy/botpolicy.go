// Package botpolicy classifies high-frequency posting accounts.
package botpolicy

import "github.com/TobiSchelling/topicmap/internal/failure"

// BotRateThreshold is the tweets-per-day rate at or above which an account
// counts as a bot.
const BotRateThreshold = 200.0

// Policy decides which accounts contribute to social-media aggregation.
type Policy string

const (
	NoBots   Policy = "no_bots"
	OnlyBots Policy = "only_bots"
	All      Policy = "all"
)

// ParsePolicy validates a policy name. An empty string means All.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(s); p {
	case NoBots, OnlyBots, All:
		return p, nil
	case "":
		return All, nil
	}
	return "", failure.Configf("bot_policy", "unknown bot policy %q", s)
}

// Rate returns tweets per day of account age. Ages under one day count as one.
func Rate(tweets int, days float64) float64 {
	if days < 1 {
		days = 1
	}
	return float64(tweets) / days
}

// IsBot reports whether an account with the given lifetime tweet count and
// age in days posts at bot rate.
func IsBot(tweets int, days float64) bool {
	return Rate(tweets, days) >= BotRateThreshold
}

// Include reports whether an account passes the policy.
func (p Policy) Include(tweets int, days float64) bool {
	switch p {
	case NoBots:
		return !IsBot(tweets, days)
	case OnlyBots:
		return IsBot(tweets, days)
	default:
		return true
	}
}
