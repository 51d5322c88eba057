package rules

import (
	"fmt"
	"time"

	"sentinel/internal/clock"
	"sentinel/internal/config"
	"sentinel/internal/domain"
	"sentinel/internal/store"
)

const (
	defaultSensitiveAccessMax = 10
	defaultSensitiveWindow    = time.Hour
)

// Behavior flags privilege escalations and bulk sensitive-data access.
// Params: event history store and clock for trailing-window queries.
// Returns: behavior_analysis detector implementation.
type Behavior struct {
	events *store.EventStore
	clk    clock.Clock
}

// NewBehavior creates behavioral heuristics detector.
// Params: event store (already containing the evaluated event) and clock.
// Returns: initialized detector.
func NewBehavior(events *store.EventStore, clk clock.Clock) *Behavior {
	return &Behavior{events: events, clk: clk}
}

// Type returns the config rule type this detector serves.
// Params: none.
// Returns: "behavior_analysis".
func (*Behavior) Type() string {
	return config.RuleBehaviorAnalysis
}

// Evaluate applies the role-change and sensitive-access heuristics.
// Params: event and behavior_analysis rule.
// Returns: privilege_escalation candidate for admin role changes;
// data_breach candidate when one user exceeds the sensitive data_access
// limit within the trailing window.
func (d *Behavior) Evaluate(event domain.SecurityEvent, rule config.SecurityRule) []Candidate {
	switch event.Type {
	case domain.EventAdminAction:
		return d.evaluateAdminAction(event, rule)
	case domain.EventDataAccess:
		return d.evaluateDataAccess(event, rule)
	default:
		return nil
	}
}

func (d *Behavior) evaluateAdminAction(event domain.SecurityEvent, rule config.SecurityRule) []Candidate {
	action, ok := event.DetailString("action")
	if !ok {
		return nil
	}
	sensitiveActions := rule.Parameters.SensitiveActions
	if len(sensitiveActions) == 0 {
		sensitiveActions = []string{"role_change"}
	}
	matched := false
	for _, sensitive := range sensitiveActions {
		if action == sensitive {
			matched = true
			break
		}
	}
	if !matched {
		return nil
	}
	return []Candidate{{
		Type:            domain.AlertPrivilegeEscalation,
		Description:     fmt.Sprintf("admin action %q performed by user %s", action, event.UserID),
		Severity:        domain.SeverityHigh,
		UserID:          event.UserID,
		IPAddress:       event.IPAddress,
		RelatedEventIDs: []string{event.ID},
		Actions:         ruleActions(rule),
		DedupKey:        string(domain.AlertPrivilegeEscalation) + "|" + event.UserID + "|" + action,
	}}
}

func (d *Behavior) evaluateDataAccess(event domain.SecurityEvent, rule config.SecurityRule) []Candidate {
	if event.UserID == "" {
		return nil
	}
	if sensitive, ok := event.DetailBool("sensitive"); !ok || !sensitive {
		return nil
	}

	maxAccess := rule.Parameters.SensitiveAccessMax
	if maxAccess <= 0 {
		maxAccess = defaultSensitiveAccessMax
	}
	windowWidth := defaultSensitiveWindow
	if rule.Parameters.SensitiveWindowMin > 0 {
		windowWidth = time.Duration(rule.Parameters.SensitiveWindowMin) * time.Minute
	}

	now := d.clk.Now()
	userID := event.UserID
	count := d.events.CountWhere(now.Add(-windowWidth), time.Time{}, func(candidate domain.SecurityEvent) bool {
		if candidate.Type != domain.EventDataAccess || candidate.UserID != userID {
			return false
		}
		sensitive, ok := candidate.DetailBool("sensitive")
		return ok && sensitive
	})
	if count <= maxAccess {
		return nil
	}
	return []Candidate{{
		Type: domain.AlertDataBreach,
		Description: fmt.Sprintf("user %s accessed sensitive data %d times within %s",
			userID, count, windowWidth),
		Severity:        domain.SeverityCritical,
		UserID:          userID,
		IPAddress:       event.IPAddress,
		RelatedEventIDs: []string{event.ID},
		Actions:         ruleActions(rule),
		DedupKey:        string(domain.AlertDataBreach) + "|" + userID,
	}}
}
