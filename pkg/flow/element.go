package flow

import (
	"fmt"
	"strings"
	"time"
)

// Role is an informational classification of an element.
type Role string

// Element roles.
const (
	RoleButton    Role = "button"
	RoleInput     Role = "input"
	RoleContainer Role = "container"
)

// Strategy is how a locator string is resolved by the session.
type Strategy string

// Locator strategies.
const (
	StrategyID            Strategy = "id"
	StrategyXPath         Strategy = "xpath"
	StrategyAccessibility Strategy = "accessibility"
	StrategyUIAutomator   Strategy = "uiautomator"
)

// Element describes how to find one UI element.
//
// Locator forms:
//
//	id=<resource-id>     (default when no prefix is given)
//	xpath=<expression>
//	~<accessibility id>
//	uiautomator=<UiSelector expression>
type Element struct {
	Locator string `yaml:"locator"`
	Role    Role   `yaml:"role"`
}

// ID builds an id-strategy element.
func ID(resourceID string, role Role) Element {
	return Element{Locator: "id=" + resourceID, Role: role}
}

// Strategy splits the locator into its strategy and value.
func (e Element) Strategy() (Strategy, string) {
	loc := e.Locator
	switch {
	case strings.HasPrefix(loc, "~"):
		return StrategyAccessibility, loc[1:]
	case strings.HasPrefix(loc, "id="):
		return StrategyID, loc[len("id="):]
	case strings.HasPrefix(loc, "xpath="):
		return StrategyXPath, loc[len("xpath="):]
	case strings.HasPrefix(loc, "uiautomator="):
		return StrategyUIAutomator, loc[len("uiautomator="):]
	case strings.HasPrefix(loc, "//"):
		return StrategyXPath, loc
	default:
		return StrategyID, loc
	}
}

// String returns the locator with the role when known.
func (e Element) String() string {
	if e.Role == "" {
		return e.Locator
	}
	return fmt.Sprintf("%s %s", e.Role, e.Locator)
}

// Condition is the predicate a wait must observe.
type Condition string

// Wait conditions.
const (
	ConditionExists          Condition = "exists"
	ConditionVisible         Condition = "visible"
	ConditionAttributeEquals Condition = "attributeEquals"
)

// WaitSpec bounds how long an element step waits and for what.
type WaitSpec struct {
	TimeoutMs int       `yaml:"timeout"`
	Condition Condition `yaml:"condition"`
	Attribute string    `yaml:"attribute"` // attributeEquals only
	Values    []string  `yaml:"values"`    // attributeEquals only, any may match
}

// Timeout returns the wait bound as a duration.
func (w WaitSpec) Timeout() time.Duration {
	return time.Duration(w.TimeoutMs) * time.Millisecond
}

// EffectiveCondition defaults an empty condition to exists.
func (w WaitSpec) EffectiveCondition() Condition {
	if w.Condition == "" {
		return ConditionExists
	}
	return w.Condition
}

// Matches reports whether an attribute value satisfies an attributeEquals wait.
func (w WaitSpec) Matches(value string) bool {
	for _, v := range w.Values {
		if v == value {
			return true
		}
	}
	return false
}

// WaitFor builds an exists wait of the given milliseconds.
func WaitFor(timeoutMs int) WaitSpec {
	return WaitSpec{TimeoutMs: timeoutMs, Condition: ConditionExists}
}

// Matcher is the attribute check of a waitAndMatch step.
type Matcher struct {
	Attribute string   `yaml:"attribute"`
	AnyOf     []string `yaml:"anyOf"`
}
