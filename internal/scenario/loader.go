package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Vars supplies values for ${NAME} placeholders in scenario files.
type Vars map[string]string

var placeholderRe = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// -- File Schema --

type fileDoc struct {
	Name           string    `yaml:"name"`
	Description    string    `yaml:"description"`
	BaseURL        string    `yaml:"base_url"`
	DefaultTimeout string    `yaml:"default_timeout"`
	Steps          []stepDoc `yaml:"steps"`
}

type stepDoc struct {
	Name        string      `yaml:"name"`
	Do          []actionDoc `yaml:"do"`
	Expect      *expectDoc  `yaml:"expect"`
	Timeout     string      `yaml:"timeout"`
	Criticality string      `yaml:"criticality"`
	BestEffort  bool        `yaml:"best_effort"`
}

type locatorDoc struct {
	CSS   string      `yaml:"css"`
	Text  string      `yaml:"text"`
	Inner *locatorDoc `yaml:"inner"`
}

type fillDoc struct {
	locatorDoc `yaml:",inline"`
	Value      string `yaml:"value"`
}

type actionDoc struct {
	Navigate *string     `yaml:"navigate"`
	Fill     *fillDoc    `yaml:"fill"`
	Click    *locatorDoc `yaml:"click"`
	Reload   bool        `yaml:"reload"`
}

type expectDoc struct {
	Text     *string     `yaml:"text"`
	Selector *locatorDoc `yaml:"selector"`
	URL      *string     `yaml:"url"`
	Title    *string     `yaml:"title"`
	NotText  *string     `yaml:"not_text"`
	AnyOf    []expectDoc `yaml:"any_of"`
}

// -- Loading --

// LoadFile reads every scenario document in a YAML file.
func LoadFile(path string, vars Vars) ([]*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	scenarios, err := Load(bytes.NewReader(data), vars)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return scenarios, nil
}

// Load decodes a stream of YAML documents, one scenario per document, and
// validates each. Unknown keys and unknown placeholders are errors.
func Load(r io.Reader, vars Vars) ([]*Scenario, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var out []*Scenario
	for i := 0; ; i++ {
		var doc fileDoc
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		if doc.Name == "" && len(doc.Steps) == 0 {
			continue
		}

		x := &expander{vars: vars}
		sc, err := x.scenario(doc)
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		if x.err != nil {
			return nil, fmt.Errorf("document %d: %w", i, x.err)
		}
		if err := sc.Validate(); err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		out = append(out, sc)
	}
	if len(out) == 0 {
		return nil, errors.New("no scenarios found")
	}
	return out, nil
}

// expander converts documents into model values, substituting placeholders
// and remembering the first unknown name.
type expander struct {
	vars Vars
	err  error
}

func (x *expander) expand(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return placeholderRe.ReplaceAllStringFunc(s, func(m string) string {
		name := placeholderRe.FindStringSubmatch(m)[1]
		v, ok := x.vars[name]
		if !ok {
			if x.err == nil {
				x.err = fmt.Errorf("unknown placeholder ${%s} (known: %s)", name, strings.Join(x.vars.names(), ", "))
			}
			return m
		}
		return v
	})
}

func (v Vars) names() []string {
	names := make([]string, 0, len(v))
	for k := range v {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func (x *expander) scenario(doc fileDoc) (*Scenario, error) {
	timeout, err := parseDuration(doc.DefaultTimeout)
	if err != nil {
		return nil, fmt.Errorf("default_timeout: %w", err)
	}
	sc := &Scenario{
		Name:           x.expand(doc.Name),
		Description:    x.expand(doc.Description),
		BaseURL:        x.expand(doc.BaseURL),
		DefaultTimeout: timeout,
		Steps:          make([]Step, 0, len(doc.Steps)),
	}
	for i, sd := range doc.Steps {
		step, err := x.step(sd)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		sc.Steps = append(sc.Steps, step)
	}
	return sc, nil
}

func (x *expander) step(sd stepDoc) (Step, error) {
	var step Step
	timeout, err := parseDuration(sd.Timeout)
	if err != nil {
		return step, fmt.Errorf("timeout: %w", err)
	}
	crit, err := ParseCriticality(strings.ToLower(sd.Criticality))
	if err != nil {
		return step, err
	}

	if len(sd.Do) == 0 && sd.Expect == nil {
		return step, errors.New("step needs an action under 'do' or a check under 'expect'")
	}
	actions := make([]Action, 0, len(sd.Do))
	for i, ad := range sd.Do {
		a, err := x.action(ad)
		if err != nil {
			return step, fmt.Errorf("do[%d]: %w", i, err)
		}
		actions = append(actions, a)
	}

	step = Step{
		Name:        x.expand(sd.Name),
		Timeout:     timeout,
		Criticality: crit,
		BestEffort:  sd.BestEffort,
	}
	switch len(actions) {
	case 0:
		step.Action = Observe()
	case 1:
		step.Action = actions[0]
	default:
		step.Action = Sequence(actions...)
	}
	if sd.Expect != nil {
		v, err := x.verification(*sd.Expect)
		if err != nil {
			return step, fmt.Errorf("expect: %w", err)
		}
		step.Verify = v
	}
	return step, nil
}

func (x *expander) action(ad actionDoc) (Action, error) {
	set := 0
	var a Action
	if ad.Navigate != nil {
		set++
		a = Navigate(x.expand(*ad.Navigate))
	}
	if ad.Fill != nil {
		set++
		a = Fill(x.locator(ad.Fill.locatorDoc), x.expand(ad.Fill.Value))
	}
	if ad.Click != nil {
		set++
		a = Click(x.locator(*ad.Click))
	}
	if ad.Reload {
		set++
		a = Reload()
	}
	if set != 1 {
		return Action{}, fmt.Errorf("exactly one of navigate, fill, click, reload is required, got %d", set)
	}
	return a, nil
}

func (x *expander) locator(ld locatorDoc) Locator {
	l := Locator{Selector: x.expand(ld.CSS), Text: x.expand(ld.Text)}
	if ld.Inner != nil {
		inner := x.locator(*ld.Inner)
		l.Inner = &inner
	}
	return l
}

func (x *expander) verification(ed expectDoc) (*Verification, error) {
	var found []*Verification
	if ed.Text != nil {
		found = append(found, VisibleText(x.expand(*ed.Text)))
	}
	if ed.Selector != nil {
		found = append(found, VisibleSelector(x.locator(*ed.Selector)))
	}
	if ed.URL != nil {
		found = append(found, URLEquals(x.expand(*ed.URL)))
	}
	if ed.Title != nil {
		found = append(found, TitleContains(x.expand(*ed.Title)))
	}
	if ed.NotText != nil {
		found = append(found, NotVisibleText(x.expand(*ed.NotText)))
	}
	if len(ed.AnyOf) > 0 {
		checks := make([]*Verification, 0, len(ed.AnyOf))
		for i, sub := range ed.AnyOf {
			c, err := x.verification(sub)
			if err != nil {
				return nil, fmt.Errorf("any_of[%d]: %w", i, err)
			}
			checks = append(checks, c)
		}
		found = append(found, AnyOf(checks...))
	}
	if len(found) != 1 {
		return nil, fmt.Errorf("exactly one of text, selector, url, title, not_text, any_of is required, got %d", len(found))
	}
	return found[0], nil
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %s", s)
	}
	return d, nil
}
