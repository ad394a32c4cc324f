package domain

import (
	"strings"
	"time"
)

type Credentials struct {
	Token string
}

type Target struct {
	Organization string
	Project      string
}

func (t Target) String() string { return t.Organization + "/" + t.Project }

type Project struct {
	ID     string
	Name   string
	WebURL string
}

type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "high"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceLow    ConfidenceLevel = "low"
)

type TriggerType string

const (
	TriggerManual             TriggerType = "manual"
	TriggerCodePush           TriggerType = "code_push"
	TriggerScheduled          TriggerType = "scheduled"
	TriggerPullRequest        TriggerType = "pull_request"
	TriggerPipelineCompletion TriggerType = "pipeline_completion"
	TriggerResource           TriggerType = "resource"
	TriggerOther              TriggerType = "other"
)

// Trigger describes why a run started.
type Trigger struct {
	Type                   TriggerType `json:"type"`
	DisplayText            string      `json:"displayText"`
	IsAutomated            bool        `json:"isAutomated"`
	TriggeredBy            string      `json:"triggeredBy,omitempty"`
	TriggeringPipelineName string      `json:"triggeringPipelineName,omitempty"`
}

type Variable struct {
	Name       string `json:"name"`
	Value      string `json:"value"`
	IsSecret   bool   `json:"isSecret"`
	IsReadOnly bool   `json:"isReadOnly"`
}

type VariableGroup struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	ResourceURL string     `json:"resourceUrl"`
	Variables   []Variable `json:"variables"`
}

// VariableGroupRef is a variable group as seen from one pipeline. A nil ID
// means the name could not be resolved and ResourceURL is a library search link.
type VariableGroupRef struct {
	Name          string `json:"name"`
	Environment   string `json:"environment,omitempty"`
	ID            *int64 `json:"id"`
	VariableCount int    `json:"variableCount"`
	ResourceURL   string `json:"resourceUrl"`
}

func (r VariableGroupRef) Resolved() bool { return r.ID != nil }

type ParsedEnvironmentSettings struct {
	Environment       string          `json:"environment"`
	VariableGroupName string          `json:"variableGroupName"`
	Confidence        ConfidenceLevel `json:"confidence"`
}

type ParsedPipelineSettings struct {
	PipelineID        int64                       `json:"pipelineId,omitempty"`
	PipelineName      string                      `json:"pipelineName,omitempty"`
	PipelinePath      string                      `json:"pipelinePath,omitempty"`
	Environments      []ParsedEnvironmentSettings `json:"environments"`
	SourceRepoProject string                      `json:"sourceRepoProject,omitempty"`
	SourceRepoName    string                      `json:"sourceRepoName,omitempty"`
	SourceRepoBranch  string                      `json:"sourceRepoBranch,omitempty"`
}

// DefinitionRef is one entry of the definitions list.
type DefinitionRef struct {
	ID   int64
	Name string
	Path string
}

type Repository struct {
	ID            string
	Name          string
	Type          string
	DefaultBranch string
}

// DeclaredVariableGroup is a variable group referenced directly by a definition.
type DeclaredVariableGroup struct {
	ID   int64
	Name string
}

type Definition struct {
	ID             int64
	Name           string
	Path           string
	QueueStatus    string
	Repository     *Repository
	VariableGroups []DeclaredVariableGroup
	// ConfigPath is set only for pipelines driven by a YAML file.
	ConfigPath string
}

type Build struct {
	ID                     int64
	Number                 string
	Status                 string
	Result                 string
	QueueTime              *time.Time
	StartTime              *time.Time
	FinishTime             *time.Time
	SourceBranch           string
	SourceVersion          string
	Reason                 string
	RequestedFor           string
	RequestedBy            string
	TriggeringPipelineName string
	WebURL                 string
}

type PipelineURLs struct {
	Runs         string `json:"runs,omitempty"`
	BuildResults string `json:"buildResults,omitempty"`
	BuildLogs    string `json:"buildLogs,omitempty"`
	Repository   string `json:"repository,omitempty"`
	Commit       string `json:"commit,omitempty"`
	Branch       string `json:"branch,omitempty"`
	ConfigEditor string `json:"configEditor,omitempty"`
	SourceRepo   string `json:"sourceRepo,omitempty"`
}

type PipelineListItem struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Path        string `json:"path"`
	QueueStatus string `json:"queueStatus,omitempty"`

	RepositoryName    string `json:"repositoryName,omitempty"`
	DefaultBranch     string `json:"defaultBranch,omitempty"`
	ConfigPath        string `json:"configPath,omitempty"`
	SourceRepoName    string `json:"sourceRepoName,omitempty"`
	SourceRepoBranch  string `json:"sourceRepoBranch,omitempty"`
	SourceRepoProject string `json:"sourceRepoProject,omitempty"`

	LatestStatus    string         `json:"latestStatus,omitempty"`
	LatestResult    string         `json:"latestResult,omitempty"`
	StartTime       *time.Time     `json:"startTime,omitempty"`
	FinishTime      *time.Time     `json:"finishTime,omitempty"`
	BuildID         int64          `json:"buildId,omitempty"`
	BuildNumber     string         `json:"buildNumber,omitempty"`
	SourceBranch    string         `json:"sourceBranch,omitempty"`
	Duration        *time.Duration `json:"duration,omitempty"`
	CommitHash      string         `json:"commitHash,omitempty"`
	CommitHashShort string         `json:"commitHashShort,omitempty"`
	Trigger         *Trigger       `json:"trigger,omitempty"`

	VariableGroups []VariableGroupRef `json:"variableGroups"`
	URLs           PipelineURLs       `json:"urls"`
}

// IsEnabled reports whether the definition accepts new runs.
func (p PipelineListItem) IsEnabled() bool {
	return p.QueueStatus == "" || p.QueueStatus == "enabled"
}

type RunInfo struct {
	ID            int64          `json:"id"`
	Number        string         `json:"number"`
	Status        string         `json:"status"`
	Result        string         `json:"result,omitempty"`
	QueueTime     *time.Time     `json:"queueTime,omitempty"`
	StartTime     *time.Time     `json:"startTime,omitempty"`
	FinishTime    *time.Time     `json:"finishTime,omitempty"`
	Duration      *time.Duration `json:"duration,omitempty"`
	SourceBranch  string         `json:"sourceBranch,omitempty"`
	SourceVersion string         `json:"sourceVersion,omitempty"`
	ResourceURL   string         `json:"resourceUrl,omitempty"`
	Trigger       Trigger        `json:"trigger"`
}

// Warning is a non-fatal problem met while building a dashboard.
type Warning struct {
	PipelineID   int64  `json:"pipelineId,omitempty"`
	PipelineName string `json:"pipelineName,omitempty"`
	Stage        Stage  `json:"stage"`
	Message      string `json:"message"`
	// Omitted is true when the pipeline was dropped from the result.
	Omitted bool `json:"omitted"`
}

type DashboardResult struct {
	Success                 bool               `json:"success"`
	Pipelines               []PipelineListItem `json:"pipelines"`
	TotalCount              int                `json:"totalCount"`
	EnabledCount            int                `json:"enabledCount"`
	FailedCount             int                `json:"failedCount"`
	AvailableVariableGroups []VariableGroup    `json:"availableVariableGroups"`
	Warnings                []Warning          `json:"warnings,omitempty"`
	ErrorMessage            string             `json:"errorMessage,omitempty"`
}

type RunsResult struct {
	Success      bool      `json:"success"`
	Runs         []RunInfo `json:"runs"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
}

type ConfigTextResult struct {
	Success      bool   `json:"success"`
	Text         string `json:"text"`
	FileName     string `json:"fileName"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}

// Snapshot is what watch mode persists after each refresh.
type Snapshot struct {
	Target    Target
	Dashboard DashboardResult
	Retrieved int64
}

const refsHeads = "refs/heads/"

// ShortBranch removes a leading refs/heads/ regardless of case.
func ShortBranch(ref string) string {
	if len(ref) >= len(refsHeads) && strings.EqualFold(ref[:len(refsHeads)], refsHeads) {
		return ref[len(refsHeads):]
	}
	return ref
}
