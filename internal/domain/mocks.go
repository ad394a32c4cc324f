package domain

import (
	"context"
	"sync"
)

// MockPlatform serves canned upstream data. Per-id errors take precedence over data.
type MockPlatform struct {
	ProjectInfo  Project
	ProjectErr   error
	Defs         []DefinitionRef
	DefsErr      error
	FullDefs     map[int64]Definition
	DefErrs      map[int64]error
	BuildsByDef  map[int64][]Build
	BuildErrs    map[int64]error
	Groups       []VariableGroup
	GroupsErr    error
	Files        map[string]string
	FileErr      error
	BuildsCalled int

	mu sync.Mutex
}

func (m *MockPlatform) ProjectURL(project string) string {
	return "https://dev.azure.test/org/" + project
}

func (m *MockPlatform) Project(ctx context.Context, project string) (Project, error) {
	if m.ProjectErr != nil {
		return Project{}, m.ProjectErr
	}
	return m.ProjectInfo, nil
}

func (m *MockPlatform) Definitions(ctx context.Context, project string) ([]DefinitionRef, error) {
	if m.DefsErr != nil {
		return nil, m.DefsErr
	}
	return m.Defs, nil
}

func (m *MockPlatform) Definition(ctx context.Context, project string, id int64) (Definition, error) {
	if err := m.DefErrs[id]; err != nil {
		return Definition{}, err
	}
	d, ok := m.FullDefs[id]
	if !ok {
		return Definition{}, ErrNotFound
	}
	return d, nil
}

func (m *MockPlatform) Builds(ctx context.Context, project string, definitionID int64, top int) ([]Build, error) {
	m.mu.Lock()
	m.BuildsCalled++
	m.mu.Unlock()

	if err := m.BuildErrs[definitionID]; err != nil {
		return nil, err
	}
	bs := m.BuildsByDef[definitionID]
	if top > 0 && len(bs) > top {
		bs = bs[:top]
	}
	return bs, nil
}

func (m *MockPlatform) VariableGroups(ctx context.Context, project string) ([]VariableGroup, error) {
	if m.GroupsErr != nil {
		return nil, m.GroupsErr
	}
	out := make([]VariableGroup, len(m.Groups))
	copy(out, m.Groups)
	return out, nil
}

func (m *MockPlatform) FileContent(ctx context.Context, project, repositoryID, path, branch string) (string, error) {
	if m.FileErr != nil {
		return "", m.FileErr
	}
	s, ok := m.Files[repositoryID+":"+path]
	if !ok {
		return "", ErrNotFound
	}
	return s, nil
}

type MockFactory struct {
	Client Platform
	Err    error
	Creds  []Credentials
}

func (f *MockFactory) Platform(creds Credentials, organization string) (Platform, error) {
	f.Creds = append(f.Creds, creds)
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Client, nil
}

type MockProgress struct {
	mu       sync.Mutex
	Messages []string
}

func (p *MockProgress) Push(ctx context.Context, connectionID, message string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Messages = append(p.Messages, connectionID+"|"+message)
	return nil
}

type MockNotifier struct {
	Messages []string
	Err      error
}

func (n *MockNotifier) Notify(ctx context.Context, title, body, url string) error {
	n.Messages = append(n.Messages, title+"|"+body+"|"+url)
	return n.Err
}

type MockCache struct {
	Snapshots []Snapshot
	Err       error
}

func (c *MockCache) Write(ctx context.Context, s Snapshot) error {
	if c.Err != nil {
		return c.Err
	}
	c.Snapshots = append(c.Snapshots, s)
	return nil
}
