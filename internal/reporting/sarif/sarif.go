package sarif

// The subset of SARIF 2.1.0 needed to publish scenario runs. Pointers mark
// optional fields; required fields are value types.

type Log struct {
	Version string `json:"version"`
	Schema  string `json:"$schema"`
	Runs    []*Run `json:"runs"`
}

// Run holds one scenario execution.
type Run struct {
	Tool              *Tool              `json:"tool"`
	AutomationDetails *AutomationDetails `json:"automationDetails,omitempty"`
	Invocations       []*Invocation      `json:"invocations,omitempty"`
	Results           []*Result          `json:"results"`
}

type Tool struct {
	Driver *ToolComponent `json:"driver"`
}

type ToolComponent struct {
	Name           string                 `json:"name"`
	Version        *string                `json:"version,omitempty"`
	InformationURI *string                `json:"informationUri,omitempty"`
	Rules          []*ReportingDescriptor `json:"rules,omitempty"`
}

type ReportingDescriptor struct {
	ID               string                    `json:"id"`
	Name             *string                   `json:"name,omitempty"`
	ShortDescription *MultiformatMessageString `json:"shortDescription,omitempty"`
	DefaultConfig    *ReportingConfiguration   `json:"defaultConfiguration,omitempty"`
}

type ReportingConfiguration struct {
	Level Level `json:"level,omitempty"`
}

// AutomationDetails identifies a run across uploads.
type AutomationDetails struct {
	ID   string `json:"id,omitempty"`
	GUID string `json:"guid,omitempty"`
}

type Invocation struct {
	ExecutionSuccessful bool    `json:"executionSuccessful"`
	StartTimeUTC        *string `json:"startTimeUtc,omitempty"`
	EndTimeUTC          *string `json:"endTimeUtc,omitempty"`
}

type Result struct {
	RuleID      string        `json:"ruleId"`
	Kind        Kind          `json:"kind,omitempty"`
	Level       Level         `json:"level,omitempty"`
	Message     *Message      `json:"message"`
	Locations   []*Location   `json:"locations,omitempty"`
	Attachments []*Attachment `json:"attachments,omitempty"`
	Properties  PropertyBag   `json:"properties,omitempty"`
}

type Location struct {
	LogicalLocations []*LogicalLocation `json:"logicalLocations,omitempty"`
	Message          *Message           `json:"message,omitempty"`
}

// LogicalLocation names a step inside a scenario, e.g. "login/step-01".
type LogicalLocation struct {
	Name               string `json:"name,omitempty"`
	FullyQualifiedName string `json:"fullyQualifiedName,omitempty"`
	Kind               string `json:"kind,omitempty"`
}

type Attachment struct {
	Description      *Message          `json:"description,omitempty"`
	ArtifactLocation *ArtifactLocation `json:"artifactLocation"`
}

type ArtifactLocation struct {
	URI *string `json:"uri,omitempty"`
}

type Message struct {
	Text *string `json:"text,omitempty"`
}

type MultiformatMessageString struct {
	Text     *string `json:"text"`
	Markdown *string `json:"markdown,omitempty"`
}

type PropertyBag map[string]interface{}

type Level string

const (
	LevelError   Level = "error"
	LevelWarning Level = "warning"
	LevelNote    Level = "note"
	LevelNone    Level = "none"
)

type Kind string

const (
	KindPass Kind = "pass"
	KindFail Kind = "fail"
)
