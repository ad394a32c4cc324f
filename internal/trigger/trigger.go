// Package trigger maps upstream build reasons onto a small, stable set of trigger types.
package trigger

import (
	"strings"

	"github.com/davarch/pipedash/internal/domain"
)

type entry struct {
	typ       domain.TriggerType
	text      string
	automated bool
}

// reasons is keyed by lower-cased upstream reason code.
var reasons = map[string]entry{
	"manual":            {domain.TriggerManual, "Manual", false},
	"individualci":      {domain.TriggerCodePush, "Code push", true},
	"batchedci":         {domain.TriggerCodePush, "Code push", true},
	"schedule":          {domain.TriggerScheduled, "Scheduled", true},
	"pullrequest":       {domain.TriggerPullRequest, "Pull request", true},
	"validateshelveset": {domain.TriggerPullRequest, "Pull request", true},
	"buildcompletion":   {domain.TriggerPipelineCompletion, "Pipeline completion", true},
	"resourcetrigger":   {domain.TriggerResource, "Resource", true},
}

// Classify never fails; unknown reasons become TriggerOther with the raw code as text.
func Classify(reason string) domain.Trigger {
	e, ok := reasons[strings.ToLower(strings.TrimSpace(reason))]
	if !ok {
		return domain.Trigger{Type: domain.TriggerOther, DisplayText: reason, IsAutomated: true}
	}
	return domain.Trigger{Type: e.typ, DisplayText: e.text, IsAutomated: e.automated}
}

// ForBuild classifies b and records who triggered it. The triggering pipeline
// name is kept only for pipeline completion triggers.
func ForBuild(b domain.Build) domain.Trigger {
	t := Classify(b.Reason)

	t.TriggeredBy = b.RequestedFor
	if t.TriggeredBy == "" {
		t.TriggeredBy = b.RequestedBy
	}

	if t.Type == domain.TriggerPipelineCompletion {
		t.TriggeringPipelineName = b.TriggeringPipelineName
	}
	return t
}
