// Package links builds web UI deep links for a project. Every method returns ""
// when an input it needs is missing.
package links

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/davarch/pipedash/internal/domain"
)

const fallbackBranch = "main"

type Deriver struct {
	base string
}

// New takes the project web URL, e.g. https://dev.azure.com/org/project.
func New(projectWebURL string) Deriver {
	return Deriver{base: strings.TrimRight(strings.TrimSpace(projectWebURL), "/")}
}

func (d Deriver) PipelineRuns(definitionID int64) string {
	if d.base == "" || definitionID <= 0 {
		return ""
	}
	return d.base + "/_build?definitionId=" + strconv.FormatInt(definitionID, 10)
}

func (d Deriver) BuildResults(buildID int64) string {
	return d.build(buildID, "results")
}

func (d Deriver) BuildLogs(buildID int64) string {
	return d.build(buildID, "logs")
}

func (d Deriver) build(buildID int64, view string) string {
	if d.base == "" || buildID <= 0 {
		return ""
	}
	return d.base + "/_build/results?buildId=" + strconv.FormatInt(buildID, 10) + "&view=" + view
}

func (d Deriver) Repository(repo string) string {
	if d.base == "" || repo == "" {
		return ""
	}
	return d.base + "/_git/" + url.PathEscape(repo)
}

func (d Deriver) Commit(repo, commit string) string {
	r := d.Repository(repo)
	if r == "" || commit == "" {
		return ""
	}
	return r + "/commit/" + url.PathEscape(commit)
}

func (d Deriver) RepositoryBranch(repo, branch string) string {
	r := d.Repository(repo)
	branch = domain.ShortBranch(branch)
	if r == "" || branch == "" {
		return ""
	}
	return r + "?version=GB" + url.QueryEscape(branch)
}

// SourceRepository links a repository that may live in another project of the
// same organization. An empty project means the current one.
func (d Deriver) SourceRepository(project, repo, branch string) string {
	if project == "" {
		if branch != "" {
			return d.RepositoryBranch(repo, branch)
		}
		return d.Repository(repo)
	}

	i := strings.LastIndex(d.base, "/")
	if i < 0 {
		return ""
	}
	other := Deriver{base: d.base[:i] + "/" + url.PathEscape(project)}
	if branch != "" {
		return other.RepositoryBranch(repo, branch)
	}
	return other.Repository(repo)
}

func (d Deriver) ConfigEditor(definitionID int64, runBranch, defaultBranch string) string {
	if d.base == "" || definitionID <= 0 {
		return ""
	}
	return d.base + "/_apps/hub/ms.vss-build-web.ci-designer-hub?pipelineId=" +
		strconv.FormatInt(definitionID, 10) + "&branch=" + url.QueryEscape(EditorBranch(runBranch, defaultBranch))
}

// EditorBranch picks the run branch, then the default branch, then main.
func EditorBranch(runBranch, defaultBranch string) string {
	for _, b := range []string{runBranch, defaultBranch} {
		if b = domain.ShortBranch(strings.TrimSpace(b)); b != "" {
			return b
		}
	}
	return fallbackBranch
}

func (d Deriver) VariableGroup(id int64) string {
	if d.base == "" || id <= 0 {
		return ""
	}
	return d.base + "/_library?itemType=VariableGroups&view=VariableGroupView&variableGroupId=" + strconv.FormatInt(id, 10)
}

// LibrarySearch points at the variable group library, filtered by name when one is given.
func (d Deriver) LibrarySearch(name string) string {
	if d.base == "" {
		return ""
	}
	u := d.base + "/_library?itemType=VariableGroups"
	if name = strings.TrimSpace(name); name != "" {
		u += "&s=" + url.QueryEscape(name)
	}
	return u
}

// ShortCommit returns the first seven characters of a commit hash.
func ShortCommit(commit string) string {
	if len(commit) <= 7 {
		return commit
	}
	return commit[:7]
}
