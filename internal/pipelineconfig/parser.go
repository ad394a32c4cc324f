// Package pipelineconfig extracts environment to variable group bindings and the
// build repository linkage from pipeline YAML without a full YAML parse.
package pipelineconfig

import (
	"strings"

	"github.com/davarch/pipedash/internal/domain"
)

// DefaultBuildRepo is the repository resource alias that marks the build repository.
const DefaultBuildRepo = "BuildRepo"

// Environments are the labels recognized in CI_<LABEL>_VariableGroup keys.
var Environments = []string{"DEV", "PROD", "CMS", "STAGING", "QA", "UAT", "TEST"}

const (
	repositoryItem     = "- repository:"
	interpolationSigil = "$"
)

type Parser struct {
	buildRepo string
}

func New(buildRepo string) *Parser {
	if strings.TrimSpace(buildRepo) == "" {
		buildRepo = DefaultBuildRepo
	}
	return &Parser{buildRepo: buildRepo}
}

// Parse never fails: text it cannot make sense of is skipped.
func (p *Parser) Parse(text string, def domain.DefinitionRef) domain.ParsedPipelineSettings {
	out := domain.ParsedPipelineSettings{
		PipelineID:   def.ID,
		PipelineName: def.Name,
		PipelinePath: def.Path,
		Environments: []domain.ParsedEnvironmentSettings{},
	}
	if strings.TrimSpace(text) == "" {
		return out
	}

	repo := repoScanner{buildRepo: p.buildRepo}
	for _, line := range strings.Split(normalizeNewlines(text), "\n") {
		out.Environments = append(out.Environments, bindingsIn(line)...)
		repo.feed(line)
	}

	for i := range out.Environments {
		out.Environments[i].VariableGroupName = strings.TrimSpace(out.Environments[i].VariableGroupName)
	}
	out.SourceRepoProject = repo.project
	out.SourceRepoName = repo.name
	out.SourceRepoBranch = repo.branch

	return out
}

func bindingsIn(line string) []domain.ParsedEnvironmentSettings {
	trimmed := strings.TrimSpace(line)
	lower := strings.ToLower(trimmed)

	var out []domain.ParsedEnvironmentSettings
	for _, env := range Environments {
		token := strings.ToLower("CI_" + env + "_VariableGroup")
		if !strings.Contains(lower, token) {
			continue
		}

		_, raw, ok := strings.Cut(trimmed, ":")
		if !ok {
			continue
		}
		value := cleanValue(raw)
		// "- name: CI_DEV_VariableGroup" names the key, not a group.
		if value == "" || strings.HasPrefix(value, interpolationSigil) || strings.Contains(strings.ToLower(value), token) {
			continue
		}

		out = append(out, domain.ParsedEnvironmentSettings{
			Environment:       env,
			VariableGroupName: value,
			Confidence:        domain.ConfidenceHigh,
		})
	}
	return out
}

type repoState int

const (
	outside repoState = iota
	insideBuildRepo
)

// repoScanner tracks whether the current line belongs to the build repository
// resource block.
//
//	outside         -> insideBuildRepo  on "- repository:" naming the build repo
//	insideBuildRepo -> outside          on "- repository:" naming another repo
//	insideBuildRepo -> outside          on an unindented line not starting with "-"
//
// Blank lines and comments never change state.
type repoScanner struct {
	buildRepo string
	state     repoState

	project string
	name    string
	branch  string
}

func (s *repoScanner) feed(line string) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return
	}

	if strings.HasPrefix(trimmed, repositoryItem) {
		alias := cleanValue(strings.TrimPrefix(trimmed, repositoryItem))
		if containsFold(alias, s.buildRepo) {
			s.state = insideBuildRepo
		} else {
			s.state = outside
		}
		return
	}

	if s.state != insideBuildRepo {
		return
	}

	if !isIndented(line) && !strings.HasPrefix(trimmed, "-") {
		s.state = outside
		return
	}

	switch {
	case strings.HasPrefix(trimmed, "name:"):
		// "project/repo"; segments past the second are ignored.
		v := cleanValue(strings.TrimPrefix(trimmed, "name:"))
		if parts := strings.Split(v, "/"); len(parts) > 1 {
			s.project, s.name = strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
		} else {
			s.project, s.name = "", v
		}
	case strings.HasPrefix(trimmed, "ref:"):
		s.branch = cleanValue(strings.TrimPrefix(trimmed, "ref:"))
	}
}

// cleanValue trims whitespace, surrounding quotes and a refs/heads/ prefix.
func cleanValue(v string) string {
	v = strings.TrimSpace(v)
	v = strings.Trim(v, `"'`)
	v = strings.TrimSpace(v)
	return domain.ShortBranch(v)
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

func isIndented(line string) bool {
	return line != "" && (line[0] == ' ' || line[0] == '\t')
}

func normalizeNewlines(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}
