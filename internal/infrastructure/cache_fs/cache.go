package cache_fs

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"github.com/davarch/pipedash/internal/domain"
)

// FSCache keeps the latest dashboard of each watched project in one JSON file,
// keyed by "organization/project".
type FSCache struct {
	path string
}

func New(path string) *FSCache { return &FSCache{path: path} }

// Entry is the cached state of one project.
type Entry struct {
	Organization string `json:"organization"`
	Project      string `json:"project"`
	Total        int    `json:"total"`
	Failed       int    `json:"failed"`
	Retrieved    int64  `json:"retrieved"`

	Dashboard domain.DashboardResult `json:"dashboard"`
}

func (c *FSCache) Write(_ context.Context, s domain.Snapshot) error {
	if c.path == "" {
		return errors.New("cache path is empty")
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return err
	}

	all, err := c.Read()
	if err != nil {
		all = map[string]Entry{}
	}
	all[s.Target.String()] = Entry{
		Organization: s.Target.Organization,
		Project:      s.Target.Project,
		Total:        s.Dashboard.TotalCount,
		Failed:       s.Dashboard.FailedCount,
		Retrieved:    s.Retrieved,
		Dashboard:    s.Dashboard,
	}

	tmp := c.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(all); err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	return os.Rename(tmp, c.path)
}

func (c *FSCache) Read() (map[string]Entry, error) {
	b, err := os.ReadFile(c.path)
	if err != nil {
		return nil, err
	}
	out := map[string]Entry{}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}
