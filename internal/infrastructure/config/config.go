package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"
)

type Project struct {
	Organization string `yaml:"organization"`
	Project      string `yaml:"project"`
	Enabled      bool   `yaml:"enabled"`
	Name         string `yaml:"name,omitempty"`
}

type Config struct {
	Upstream struct {
		BaseURL string        `yaml:"base_url"`
		Token   string        `yaml:"token"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"upstream"`

	Dashboard struct {
		Organization    string        `yaml:"organization"`
		Project         string        `yaml:"project"`
		Concurrency     int           `yaml:"concurrency"`
		PipelineTimeout time.Duration `yaml:"pipeline_timeout"`
		Timeout         time.Duration `yaml:"timeout"`
		BuildRepo       string        `yaml:"build_repo"`
		RecentRuns      int           `yaml:"recent_runs"`
	} `yaml:"dashboard"`

	Watch struct {
		Interval  time.Duration `yaml:"interval"`
		Projects  []Project     `yaml:"projects"`
		PauseFile string        `yaml:"pause_file"`
	} `yaml:"watch"`

	Cache struct {
		Path string `yaml:"path"`
	} `yaml:"cache"`

	Server struct {
		ListenAddr string `yaml:"listen_addr"`
	} `yaml:"server"`

	Log struct {
		Debug bool `yaml:"debug"`
	} `yaml:"log"`
}

// Load reads path when it exists, applies environment overrides and fills
// defaults. A missing file is not an error, and neither is a missing token;
// see RequireToken.
func Load(path string) (Config, error) {
	var c Config

	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(b, &c); err != nil {
				return c, err
			}
		case !errors.Is(err, os.ErrNotExist):
			return c, err
		}
	}

	if v := os.Getenv("AZDO_BASE_URL"); v != "" {
		c.Upstream.BaseURL = v
	}

	if v := os.Getenv("AZDO_TOKEN"); v != "" {
		c.Upstream.Token = v
	}

	if v := os.Getenv("AZDO_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Upstream.Timeout = d
		}
	}

	if v := os.Getenv("AZDO_ORG"); v != "" {
		c.Dashboard.Organization = v
	}

	if v := os.Getenv("AZDO_PROJECT"); v != "" {
		c.Dashboard.Project = v
	}

	if v := os.Getenv("DASHBOARD_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Dashboard.Concurrency = n
		}
	}

	if v := os.Getenv("INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Watch.Interval = d
		}
	}

	if v := os.Getenv("CACHE_PATH"); v != "" {
		c.Cache.Path = v
	}

	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		c.Server.ListenAddr = v
	}

	applyDefaults(&c)

	return c, nil
}

// RequireToken fails when no default access token is configured. Commands
// that call upstream without per-request credentials check it.
func (c Config) RequireToken() error {
	if c.Upstream.Token == "" {
		return errors.New("AZDO_TOKEN is required")
	}
	return nil
}

// applyDefaults fills zero values, so a file written by Save with empty
// fields still loads sane settings.
func applyDefaults(c *Config) {
	if c.Upstream.BaseURL == "" {
		c.Upstream.BaseURL = "https://dev.azure.com"
	}
	if c.Upstream.Timeout <= 0 {
		c.Upstream.Timeout = 15 * time.Second
	}
	if c.Dashboard.Concurrency <= 0 {
		c.Dashboard.Concurrency = 4
	}
	if c.Dashboard.PipelineTimeout <= 0 {
		c.Dashboard.PipelineTimeout = 30 * time.Second
	}
	if c.Dashboard.Timeout <= 0 {
		c.Dashboard.Timeout = 2 * time.Minute
	}
	if c.Dashboard.RecentRuns <= 0 {
		c.Dashboard.RecentRuns = 5
	}
	if c.Watch.Interval <= 0 {
		c.Watch.Interval = time.Minute
	}
	if c.Watch.PauseFile == "" {
		c.Watch.PauseFile = "~/.cache/pipedash_paused"
	}
	if c.Cache.Path == "" {
		c.Cache.Path = "~/.cache/pipedash.json"
	}
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = ":8080"
	}
	c.Watch.PauseFile = expandHome(c.Watch.PauseFile)
	c.Cache.Path = expandHome(c.Cache.Path)
}

// EnabledProjects lists the watch projects, falling back to the dashboard
// organization/project when none are configured.
func (c Config) EnabledProjects() []Project {
	var out []Project
	for _, p := range c.Watch.Projects {
		if !p.Enabled {
			continue
		}
		if p.Organization == "" {
			p.Organization = c.Dashboard.Organization
		}
		out = append(out, p)
	}
	if len(out) == 0 && len(c.Watch.Projects) == 0 && c.Dashboard.Organization != "" && c.Dashboard.Project != "" {
		out = append(out, Project{Organization: c.Dashboard.Organization, Project: c.Dashboard.Project, Enabled: true})
	}
	return out
}

// LoadFile reads path as is: no defaults, no environment overrides and no
// validation. Use it for read-modify-Save so env secrets never reach the file.
func LoadFile(path string) (Config, error) {
	var c Config
	b, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	err = yaml.Unmarshal(b, &c)
	return c, err
}

func Save(path string, c Config) error {
	if path == "" {
		return errors.New("empty config path")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	lockFile := path + ".lock"
	lf, err := os.OpenFile(lockFile, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return err
	}
	defer func() { _ = lf.Close() }()

	if runtime.GOOS != "windows" {
		if err := syscall.Flock(int(lf.Fd()), syscall.LOCK_EX); err != nil {
			return err
		}
		defer func() { _ = syscall.Flock(int(lf.Fd()), syscall.LOCK_UN) }()
	}

	b, err := yaml.Marshal(&c)
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}

	defer func() { _ = f.Close() }()

	if _, err := f.Write(b); err != nil {
		return err
	}

	if err := f.Sync(); err != nil {
		return err
	}

	return os.Rename(tmp, path)
}

func expandHome(p string) string {
	if strings.HasPrefix(p, "~/") {
		if h, _ := os.UserHomeDir(); h != "" {
			return h + p[1:]
		}
	}
	return p
}
