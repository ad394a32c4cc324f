package azdo_http

import (
	"context"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/davarch/pipedash/internal/domain"
)

// yamlProcess is the build definition process type of YAML pipelines.
const yamlProcess = 2

type linksDTO struct {
	Web struct {
		Href string `json:"href"`
	} `json:"web"`
}

type identityDTO struct {
	DisplayName string `json:"displayName"`
}

type projectDTO struct {
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	Links linksDTO `json:"_links"`
}

type definitionDTO struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Path        string `json:"path"`
	QueueStatus string `json:"queueStatus"`
	Repository  *struct {
		ID            string `json:"id"`
		Name          string `json:"name"`
		Type          string `json:"type"`
		DefaultBranch string `json:"defaultBranch"`
	} `json:"repository"`
	VariableGroups []struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	} `json:"variableGroups"`
	Process *struct {
		Type         int    `json:"type"`
		YamlFilename string `json:"yamlFilename"`
	} `json:"process"`
}

type buildDTO struct {
	ID               int64        `json:"id"`
	BuildNumber      string       `json:"buildNumber"`
	Status           string       `json:"status"`
	Result           string       `json:"result"`
	QueueTime        *time.Time   `json:"queueTime"`
	StartTime        *time.Time   `json:"startTime"`
	FinishTime       *time.Time   `json:"finishTime"`
	SourceBranch     string       `json:"sourceBranch"`
	SourceVersion    string       `json:"sourceVersion"`
	Reason           string       `json:"reason"`
	RequestedFor     *identityDTO `json:"requestedFor"`
	RequestedBy      *identityDTO `json:"requestedBy"`
	Links            linksDTO     `json:"_links"`
	TriggeredByBuild *struct {
		Definition struct {
			Name string `json:"name"`
		} `json:"definition"`
	} `json:"triggeredByBuild"`
}

type variableGroupDTO struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Variables   map[string]struct {
		Value      string `json:"value"`
		IsSecret   bool   `json:"isSecret"`
		IsReadOnly bool   `json:"isReadOnly"`
	} `json:"variables"`
}

type listDTO[T any] struct {
	Count int `json:"count"`
	Value []T `json:"value"`
}

func (c *Client) ProjectURL(project string) string {
	return c.orgURL() + "/" + url.PathEscape(project)
}

func (c *Client) Project(ctx context.Context, project string) (domain.Project, error) {
	u := c.orgURL() + "/_apis/projects/" + url.PathEscape(project) + "?api-version=" + apiVersion

	var dto projectDTO
	if _, err := c.getJSON(ctx, u, &dto); err != nil {
		return domain.Project{}, err
	}

	return domain.Project{ID: dto.ID, Name: dto.Name, WebURL: dto.Links.Web.Href}, nil
}

// Definitions follows continuation tokens until the list is exhausted.
func (c *Client) Definitions(ctx context.Context, project string) ([]domain.DefinitionRef, error) {
	var out []domain.DefinitionRef
	token := ""
	for {
		q := url.Values{"queryOrder": {"definitionNameAscending"}}
		if token != "" {
			q.Set("continuationToken", token)
		}

		var page listDTO[definitionDTO]
		hdr, err := c.getJSON(ctx, c.projectAPI(project, "build/definitions", q), &page)
		if err != nil {
			return nil, err
		}
		for _, d := range page.Value {
			out = append(out, domain.DefinitionRef{ID: d.ID, Name: d.Name, Path: d.Path})
		}

		token = hdr.Get("X-MS-ContinuationToken")
		if token == "" {
			return out, nil
		}
	}
}

func (c *Client) Definition(ctx context.Context, project string, id int64) (domain.Definition, error) {
	var dto definitionDTO
	if _, err := c.getJSON(ctx, c.projectAPI(project, "build/definitions/"+strconv.FormatInt(id, 10), nil), &dto); err != nil {
		return domain.Definition{}, err
	}

	d := domain.Definition{
		ID:          dto.ID,
		Name:        dto.Name,
		Path:        dto.Path,
		QueueStatus: dto.QueueStatus,
	}
	if r := dto.Repository; r != nil {
		d.Repository = &domain.Repository{ID: r.ID, Name: r.Name, Type: r.Type, DefaultBranch: r.DefaultBranch}
	}
	for _, g := range dto.VariableGroups {
		d.VariableGroups = append(d.VariableGroups, domain.DeclaredVariableGroup{ID: g.ID, Name: g.Name})
	}
	if p := dto.Process; p != nil && p.Type == yamlProcess {
		d.ConfigPath = p.YamlFilename
	}
	return d, nil
}

func (c *Client) Builds(ctx context.Context, project string, definitionID int64, top int) ([]domain.Build, error) {
	q := url.Values{
		"definitions": {strconv.FormatInt(definitionID, 10)},
		"queryOrder":  {"queueTimeDescending"},
	}
	if top > 0 {
		q.Set("$top", strconv.Itoa(top))
	}

	var page listDTO[buildDTO]
	if _, err := c.getJSON(ctx, c.projectAPI(project, "build/builds", q), &page); err != nil {
		return nil, err
	}

	out := make([]domain.Build, 0, len(page.Value))
	for _, b := range page.Value {
		out = append(out, mapBuild(b))
	}
	return out, nil
}

func mapBuild(b buildDTO) domain.Build {
	out := domain.Build{
		ID:            b.ID,
		Number:        b.BuildNumber,
		Status:        b.Status,
		Result:        b.Result,
		QueueTime:     b.QueueTime,
		StartTime:     b.StartTime,
		FinishTime:    b.FinishTime,
		SourceBranch:  b.SourceBranch,
		SourceVersion: b.SourceVersion,
		Reason:        b.Reason,
		WebURL:        b.Links.Web.Href,
	}
	if b.RequestedFor != nil {
		out.RequestedFor = b.RequestedFor.DisplayName
	}
	if b.RequestedBy != nil {
		out.RequestedBy = b.RequestedBy.DisplayName
	}
	if b.TriggeredByBuild != nil {
		out.TriggeringPipelineName = b.TriggeredByBuild.Definition.Name
	}
	return out
}

// VariableGroups returns groups with variables sorted by name. Secret values
// are left as the service sent them (normally null).
func (c *Client) VariableGroups(ctx context.Context, project string) ([]domain.VariableGroup, error) {
	var page listDTO[variableGroupDTO]
	if _, err := c.getJSON(ctx, c.projectAPI(project, "distributedtask/variablegroups", nil), &page); err != nil {
		return nil, err
	}

	out := make([]domain.VariableGroup, 0, len(page.Value))
	for _, g := range page.Value {
		vg := domain.VariableGroup{ID: g.ID, Name: g.Name, Description: g.Description}
		for name, v := range g.Variables {
			vg.Variables = append(vg.Variables, domain.Variable{
				Name: name, Value: v.Value, IsSecret: v.IsSecret, IsReadOnly: v.IsReadOnly,
			})
		}
		sort.Slice(vg.Variables, func(i, j int) bool { return vg.Variables[i].Name < vg.Variables[j].Name })
		out = append(out, vg)
	}
	return out, nil
}

func (c *Client) FileContent(ctx context.Context, project, repositoryID, path, branch string) (string, error) {
	q := url.Values{
		"path":                          {path},
		"includeContent":                {"true"},
		"versionDescriptor.version":     {branch},
		"versionDescriptor.versionType": {"branch"},
	}
	return c.getText(ctx, c.projectAPI(project, "git/repositories/"+url.PathEscape(repositoryID)+"/items", q))
}
