package rules

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"sentinel/internal/config"
	"sentinel/internal/domain"
)

// maliciousBlockDuration is the fixed mitigation window for signature hits.
const maliciousBlockDuration = time.Hour

// PatternDetection matches event details against injection/XSS signatures.
// Params: none; signatures live in rule parameters.
// Returns: pattern_detection detector implementation.
type PatternDetection struct{}

// NewPatternDetection creates pattern detector.
// Params: none.
// Returns: initialized detector.
func NewPatternDetection() *PatternDetection {
	return &PatternDetection{}
}

// Type returns the config rule type this detector serves.
// Params: none.
// Returns: "pattern_detection".
func (*PatternDetection) Type() string {
	return config.RulePatternDetection
}

// Evaluate searches serialized details for configured signatures.
// Params: event and pattern_detection rule.
// Returns: one malicious_request candidate on the first matching
// signature; remaining signatures are skipped. The source IP is blocked
// for a fixed hour.
func (*PatternDetection) Evaluate(event domain.SecurityEvent, rule config.SecurityRule) []Candidate {
	if len(event.Details) == 0 {
		return nil
	}
	serialized, err := json.Marshal(event.Details)
	if err != nil {
		return nil
	}
	haystack := strings.ToLower(string(serialized))

	for _, signature := range rule.Parameters.Patterns {
		needle := strings.ToLower(signature)
		if needle == "" || !strings.Contains(haystack, needle) {
			continue
		}
		actions := ruleActions(rule)
		if !rule.HasAction("block") {
			actions = append(actions, domain.ActionBlock)
		}
		return []Candidate{{
			Type:            domain.AlertMaliciousRequest,
			Description:     fmt.Sprintf("malicious pattern %q in request from %s", signature, event.IPAddress),
			Severity:        domain.SeverityHigh,
			UserID:          event.UserID,
			IPAddress:       event.IPAddress,
			RelatedEventIDs: []string{event.ID},
			Actions:         actions,
			BlockDuration:   maliciousBlockDuration,
			DedupKey:        string(domain.AlertMaliciousRequest) + "|" + event.IPAddress + "|" + needle,
		}}
	}
	return nil
}
