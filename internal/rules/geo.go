package rules

import (
	"fmt"
	"strings"

	"sentinel/internal/config"
	"sentinel/internal/domain"
)

// GeoAnomaly flags successful logins from unexpected countries.
// Params: none; the allow-list lives in rule parameters.
// Returns: geo_block detector implementation.
type GeoAnomaly struct{}

// NewGeoAnomaly creates geo-anomaly detector.
// Params: none.
// Returns: initialized detector.
func NewGeoAnomaly() *GeoAnomaly {
	return &GeoAnomaly{}
}

// Type returns the config rule type this detector serves.
// Params: none.
// Returns: "geo_block".
func (*GeoAnomaly) Type() string {
	return config.RuleGeoBlock
}

// Evaluate checks login country against the configured allow-list.
// Params: event and geo_block rule.
// Returns: one suspicious_location candidate for disallowed countries.
// Events without a resolved location are not applicable. This detector
// never blocks.
func (*GeoAnomaly) Evaluate(event domain.SecurityEvent, rule config.SecurityRule) []Candidate {
	if event.Type != domain.EventLoginSuccess {
		return nil
	}
	if event.Location == nil || strings.TrimSpace(event.Location.Country) == "" {
		return nil
	}
	country := strings.ToUpper(strings.TrimSpace(event.Location.Country))
	for _, allowed := range rule.Parameters.AllowedCountries {
		if strings.ToUpper(strings.TrimSpace(allowed)) == country {
			return nil
		}
	}
	return []Candidate{{
		Type:            domain.AlertSuspiciousLocation,
		Description:     fmt.Sprintf("login from disallowed country %s (ip %s)", country, event.IPAddress),
		Severity:        domain.SeverityMedium,
		UserID:          event.UserID,
		IPAddress:       event.IPAddress,
		RelatedEventIDs: []string{event.ID},
		Actions:         withoutBlock(ruleActions(rule)),
		DedupKey:        string(domain.AlertSuspiciousLocation) + "|" + event.UserID + "|" + country,
	}}
}
