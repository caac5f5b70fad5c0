package scenario

import (
	"errors"
	"fmt"
	"strings"
)

// VerificationKind tags the check held by a Verification.
type VerificationKind string

const (
	VerifyVisibleText     VerificationKind = "visible_text"
	VerifyVisibleSelector VerificationKind = "visible_selector"
	VerifyURLEquals       VerificationKind = "url_equals"
	VerifyTitleContains   VerificationKind = "title_contains"
	VerifyNotVisibleText  VerificationKind = "not_visible_text"
	// VerifyAnyOf holds when at least one of Checks holds.
	VerifyAnyOf VerificationKind = "any_of"
)

// Verification is a UI condition polled after a step's action.
type Verification struct {
	Kind   VerificationKind `json:"kind"`
	Text   string           `json:"text,omitempty"`
	Ref    Locator          `json:"ref"`
	URL    string           `json:"url,omitempty"`
	Checks []*Verification  `json:"checks,omitempty"`
}

func VisibleText(text string) *Verification {
	return &Verification{Kind: VerifyVisibleText, Text: text}
}

func VisibleSelector(ref Locator) *Verification {
	return &Verification{Kind: VerifyVisibleSelector, Ref: ref}
}

// URLEquals holds when the page URL equals url once both are resolved
// against the scenario's base URL.
func URLEquals(url string) *Verification {
	return &Verification{Kind: VerifyURLEquals, URL: url}
}

func TitleContains(text string) *Verification {
	return &Verification{Kind: VerifyTitleContains, Text: text}
}

// NotVisibleText holds when no visible element contains text.
func NotVisibleText(text string) *Verification {
	return &Verification{Kind: VerifyNotVisibleText, Text: text}
}

func AnyOf(checks ...*Verification) *Verification {
	return &Verification{Kind: VerifyAnyOf, Checks: checks}
}

// Describe renders the check for reports.
func (v *Verification) Describe() string {
	switch v.Kind {
	case VerifyVisibleText:
		return fmt.Sprintf("text %q visible", v.Text)
	case VerifyVisibleSelector:
		return v.Ref.String() + " visible"
	case VerifyURLEquals:
		return fmt.Sprintf("url = %q", v.URL)
	case VerifyTitleContains:
		return fmt.Sprintf("title contains %q", v.Text)
	case VerifyNotVisibleText:
		return fmt.Sprintf("text %q not visible", v.Text)
	case VerifyAnyOf:
		parts := make([]string, len(v.Checks))
		for i, c := range v.Checks {
			if c == nil {
				parts[i] = "<nil>"
				continue
			}
			parts[i] = c.Describe()
		}
		return "any of (" + strings.Join(parts, " | ") + ")"
	default:
		return fmt.Sprintf("unknown check %q", v.Kind)
	}
}

func (v *Verification) Validate() error {
	switch v.Kind {
	case VerifyVisibleText, VerifyTitleContains, VerifyNotVisibleText:
		if v.Text == "" {
			return fmt.Errorf("%s requires text", v.Kind)
		}
	case VerifyVisibleSelector:
		if err := v.Ref.Validate(); err != nil {
			return fmt.Errorf("%s: %w", v.Kind, err)
		}
	case VerifyURLEquals:
		if v.URL == "" {
			return errors.New("url_equals requires a url")
		}
	case VerifyAnyOf:
		if len(v.Checks) == 0 {
			return errors.New("any_of requires at least one check")
		}
		for i, c := range v.Checks {
			if c == nil {
				return fmt.Errorf("any_of[%d]: nil check", i)
			}
			if err := c.Validate(); err != nil {
				return fmt.Errorf("any_of[%d]: %w", i, err)
			}
		}
	default:
		return fmt.Errorf("unknown verification kind %q", v.Kind)
	}
	return nil
}
