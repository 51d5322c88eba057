package rules

import (
	"fmt"

	"sentinel/internal/config"
	"sentinel/internal/domain"
	"sentinel/internal/ratelimit"
)

// BruteForce flags repeated login failures from one IP/user pair.
// Params: shared fixed-window tracker.
// Returns: rate_limit detector implementation.
type BruteForce struct {
	tracker *ratelimit.Tracker
}

// NewBruteForce creates brute-force detector.
// Params: fixed-window tracker shared with housekeeping.
// Returns: initialized detector.
func NewBruteForce(tracker *ratelimit.Tracker) *BruteForce {
	return &BruteForce{tracker: tracker}
}

// Type returns the config rule type this detector serves.
// Params: none.
// Returns: "rate_limit".
func (*BruteForce) Type() string {
	return config.RuleRateLimit
}

// Evaluate counts one login failure and raises on reaching max attempts.
// Params: event and rate_limit rule.
// Returns: one brute_force candidate when the window count reaches the
// limit; the blocking duration comes from rule parameters.
func (d *BruteForce) Evaluate(event domain.SecurityEvent, rule config.SecurityRule) []Candidate {
	if event.Type != domain.EventLoginFailure {
		return nil
	}
	key := ratelimit.Key(event.IPAddress, event.UserID)
	count := d.tracker.Hit(key, rule.Parameters.WindowDuration())
	if count < rule.Parameters.MaxAttempts {
		return nil
	}

	candidate := Candidate{
		Type: domain.AlertBruteForce,
		Description: fmt.Sprintf("%d failed login attempts from %s within %d minutes",
			count, event.IPAddress, rule.Parameters.WindowMinutes),
		Severity:        domain.SeverityHigh,
		UserID:          event.UserID,
		IPAddress:       event.IPAddress,
		RelatedEventIDs: []string{event.ID},
		Actions:         ruleActions(rule),
		DedupKey:        string(domain.AlertBruteForce) + "|" + key,
	}
	if rule.HasAction("block") {
		candidate.BlockDuration = rule.Parameters.BlockDuration()
	}
	return []Candidate{candidate}
}
