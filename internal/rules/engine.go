package rules

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"sentinel/internal/config"
	"sentinel/internal/domain"
)

// Candidate is one alert candidate emitted by a detector.
// Params: detection context plus requested response actions.
// Returns: input for alert manager creation and dedup.
type Candidate struct {
	Type            domain.SecurityAlertType
	Description     string
	Severity        domain.Severity
	UserID          string
	IPAddress       string
	RelatedEventIDs []string
	Actions         []domain.AlertAction
	BlockDuration   time.Duration
	DedupKey        string
}

// Detector evaluates one security event for one rule type.
// Params: event plus rule parameters; absent optional data short-circuits
// applicability instead of failing.
// Returns: zero or more alert candidates.
type Detector interface {
	Type() string
	Evaluate(event domain.SecurityEvent, rule config.SecurityRule) []Candidate
}

// Engine runs configured rules against newly recorded events.
// Params: detector registry keyed by rule type and active rule snapshot.
// Returns: candidate stream for the alert manager.
type Engine struct {
	mu        sync.RWMutex
	logger    *slog.Logger
	detectors map[string]Detector
	rules     []config.SecurityRule
}

// New constructs engine with detector registry.
// Params: logger and detector implementations.
// Returns: initialized engine without rules.
func New(logger *slog.Logger, detectors ...Detector) *Engine {
	registry := make(map[string]Detector, len(detectors))
	for _, detector := range detectors {
		registry[detector.Type()] = detector
	}
	return &Engine{logger: logger, detectors: registry}
}

// SetRules atomically replaces the active rule snapshot.
// Params: validated rule list in evaluation order.
// Returns: none.
func (e *Engine) SetRules(rules []config.SecurityRule) {
	snapshot := append([]config.SecurityRule(nil), rules...)
	e.mu.Lock()
	e.rules = snapshot
	e.mu.Unlock()
}

// Rules returns the active rule snapshot.
// Params: none.
// Returns: copy of the rule list.
func (e *Engine) Rules() []config.SecurityRule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]config.SecurityRule(nil), e.rules...)
}

// Evaluate runs all enabled rules against one event in registration order.
// Params: validated event already appended to the store.
// Returns: collected candidates; one failing rule never blocks the rest.
func (e *Engine) Evaluate(event domain.SecurityEvent) []Candidate {
	e.mu.RLock()
	rules := e.rules
	e.mu.RUnlock()

	var candidates []Candidate
	for _, rule := range rules {
		if !rule.Enabled {
			continue
		}
		detector, ok := e.detectors[rule.Type]
		if !ok {
			continue
		}
		found, err := e.evaluateRule(detector, event, rule)
		if err != nil {
			e.logger.Error("rule evaluation failed", "rule", rule.Name, "type", rule.Type, "error", err.Error())
			continue
		}
		candidates = append(candidates, found...)
	}
	return candidates
}

// evaluateRule isolates one detector call behind panic recovery.
// Params: detector, event, and rule snapshot.
// Returns: candidates or recovered evaluation error.
func (e *Engine) evaluateRule(detector Detector, event domain.SecurityEvent, rule config.SecurityRule) (candidates []Candidate, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			candidates = nil
			err = fmt.Errorf("detector panic: %v", recovered)
		}
	}()
	return detector.Evaluate(event, rule), nil
}

// ruleActions maps configured action tokens into typed actions.
// Params: rule action list.
// Returns: typed action list preserving order.
func ruleActions(rule config.SecurityRule) []domain.AlertAction {
	out := make([]domain.AlertAction, 0, len(rule.Actions))
	for _, action := range rule.Actions {
		out = append(out, domain.AlertAction(action))
	}
	return out
}

// withoutBlock strips the block action from an action list.
// Params: typed action list.
// Returns: filtered list.
func withoutBlock(actions []domain.AlertAction) []domain.AlertAction {
	out := make([]domain.AlertAction, 0, len(actions))
	for _, action := range actions {
		if action == domain.ActionBlock {
			continue
		}
		out = append(out, action)
	}
	return out
}
