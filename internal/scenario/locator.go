package scenario

import (
	"errors"
	"fmt"
	"strings"
)

// Locator references an element on the page. Selector is a CSS selector,
// Text restricts matches to elements whose rendered text contains it, and
// Inner narrows the search to descendants of each match.
//
// A Locator with only Text matches any element containing that text.
type Locator struct {
	Selector string   `json:"css,omitempty" yaml:"css,omitempty"`
	Text     string   `json:"text,omitempty" yaml:"text,omitempty"`
	Inner    *Locator `json:"inner,omitempty" yaml:"inner,omitempty"`
}

// CSS returns a Locator for a CSS selector.
func CSS(selector string) Locator {
	return Locator{Selector: selector}
}

// Text returns a Locator for any element whose text contains text.
func Text(text string) Locator {
	return Locator{Text: text}
}

// HasText returns a copy of l that also requires the element text to contain text.
func (l Locator) HasText(text string) Locator {
	l.Text = text
	return l
}

// Find returns a copy of l that resolves inner within the innermost match of l.
func (l Locator) Find(inner Locator) Locator {
	if l.Inner == nil {
		l.Inner = &inner
		return l
	}
	nested := l.Inner.Find(inner)
	l.Inner = &nested
	return l
}

// IsZero reports whether the locator selects nothing.
func (l Locator) IsZero() bool {
	return l.Selector == "" && l.Text == "" && l.Inner == nil
}

// Validate checks that every level of the chain selects something.
func (l Locator) Validate() error {
	if l.Selector == "" && l.Text == "" {
		return errors.New("locator needs a css selector or text")
	}
	if l.Inner != nil {
		if err := l.Inner.Validate(); err != nil {
			return fmt.Errorf("inner %w", err)
		}
	}
	return nil
}

// String renders the locator for reports, e.g. `css "tr" has "a@b.c" >> css "button"`.
func (l Locator) String() string {
	var b strings.Builder
	switch {
	case l.Selector != "" && l.Text != "":
		fmt.Fprintf(&b, "css %q has %q", l.Selector, l.Text)
	case l.Selector != "":
		fmt.Fprintf(&b, "css %q", l.Selector)
	case l.Text != "":
		fmt.Fprintf(&b, "text %q", l.Text)
	default:
		b.WriteString("<empty>")
	}
	if l.Inner != nil {
		b.WriteString(" >> ")
		b.WriteString(l.Inner.String())
	}
	return b.String()
}
