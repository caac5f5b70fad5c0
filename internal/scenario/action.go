package scenario

import (
	"errors"
	"fmt"
	"strings"
)

// ActionKind tags the variant held by an Action.
type ActionKind string

const (
	ActionNavigate ActionKind = "navigate"
	ActionFill     ActionKind = "fill"
	ActionClick    ActionKind = "click"
	ActionReload   ActionKind = "reload"
	// ActionObserve performs nothing; the step only polls its verification.
	ActionObserve ActionKind = "observe"
	// ActionSequence runs Actions in order and stops at the first failure.
	ActionSequence ActionKind = "sequence"
)

// Action is a single user-like interaction. Only the fields relevant to Kind are set.
type Action struct {
	Kind    ActionKind `json:"kind"`
	URL     string     `json:"url,omitempty"`
	Target  Locator    `json:"target"`
	Value   string     `json:"-"`
	Actions []Action   `json:"actions,omitempty"`
}

// Navigate loads url. Relative URLs resolve against the scenario's base URL.
func Navigate(url string) Action {
	return Action{Kind: ActionNavigate, URL: url}
}

// Fill replaces the value of the field matched by field.
func Fill(field Locator, value string) Action {
	return Action{Kind: ActionFill, Target: field, Value: value}
}

// Click clicks the element matched by target.
func Click(target Locator) Action {
	return Action{Kind: ActionClick, Target: target}
}

// Reload reloads the current page.
func Reload() Action {
	return Action{Kind: ActionReload}
}

// Observe is the action of a check-only step.
func Observe() Action {
	return Action{Kind: ActionObserve}
}

// Sequence groups several actions into one step.
func Sequence(actions ...Action) Action {
	return Action{Kind: ActionSequence, Actions: actions}
}

// Describe renders the action for reports. Fill values are never printed
// since they routinely carry credentials.
func (a Action) Describe() string {
	switch a.Kind {
	case ActionNavigate:
		return "navigate " + a.URL
	case ActionFill:
		return "fill " + a.Target.String()
	case ActionClick:
		return "click " + a.Target.String()
	case ActionReload:
		return "reload"
	case ActionObserve:
		return "observe"
	case ActionSequence:
		parts := make([]string, len(a.Actions))
		for i, sub := range a.Actions {
			parts[i] = sub.Describe()
		}
		return strings.Join(parts, "; ")
	default:
		return fmt.Sprintf("unknown action %q", a.Kind)
	}
}

// Validate checks that the action carries what its kind needs.
func (a Action) Validate() error {
	switch a.Kind {
	case ActionNavigate:
		if a.URL == "" {
			return errors.New("navigate requires a url")
		}
	case ActionFill, ActionClick:
		if err := a.Target.Validate(); err != nil {
			return fmt.Errorf("%s: %w", a.Kind, err)
		}
	case ActionReload, ActionObserve:
	case ActionSequence:
		if len(a.Actions) == 0 {
			return errors.New("sequence requires at least one action")
		}
		for i, sub := range a.Actions {
			if err := sub.Validate(); err != nil {
				return fmt.Errorf("sequence[%d]: %w", i, err)
			}
		}
	default:
		return fmt.Errorf("unknown action kind %q", a.Kind)
	}
	return nil
}
