package http_api

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/davarch/pipedash/internal/domain"
	"github.com/davarch/pipedash/internal/infrastructure/progress"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeService struct {
	creds     domain.Credentials
	org       string
	project   string
	connID    string
	top       int
	pipeline  int64
	dashErr   error
	configErr error
	// block makes upstream calls wait for the request deadline.
	block bool
}

func (f *fakeService) wait(ctx context.Context) error {
	if !f.block {
		return nil
	}
	<-ctx.Done()
	return ctx.Err()
}

func (f *fakeService) GetDashboard(ctx context.Context, creds domain.Credentials, org, project, connectionID string) (domain.DashboardResult, error) {
	f.creds, f.org, f.project, f.connID = creds, org, project, connectionID
	if err := f.wait(ctx); err != nil {
		return domain.DashboardResult{Pipelines: []domain.PipelineListItem{}, ErrorMessage: err.Error()}, err
	}
	if f.dashErr != nil {
		return domain.DashboardResult{Pipelines: []domain.PipelineListItem{}, ErrorMessage: f.dashErr.Error()}, f.dashErr
	}
	return domain.DashboardResult{Success: true, Pipelines: []domain.PipelineListItem{{ID: 1, Name: "api"}}, TotalCount: 1}, nil
}

func (f *fakeService) GetRecentRuns(ctx context.Context, creds domain.Credentials, org, project string, pipelineID int64, top int) (domain.RunsResult, error) {
	f.creds, f.pipeline, f.top = creds, pipelineID, top
	if err := f.wait(ctx); err != nil {
		return domain.RunsResult{Runs: []domain.RunInfo{}, ErrorMessage: err.Error()}, err
	}
	return domain.RunsResult{Success: true, Runs: []domain.RunInfo{{ID: 9}}}, nil
}

func (f *fakeService) GetConfigText(ctx context.Context, _ domain.Credentials, _, _ string, pipelineID int64) (domain.ConfigTextResult, error) {
	f.pipeline = pipelineID
	if err := f.wait(ctx); err != nil {
		return domain.ConfigTextResult{ErrorMessage: err.Error()}, err
	}
	if f.configErr != nil {
		return domain.ConfigTextResult{ErrorMessage: f.configErr.Error()}, f.configErr
	}
	return domain.ConfigTextResult{Success: true, Text: "trigger: none", FileName: "/ci.yml"}, nil
}

func (f *fakeService) ParseConfig(text string, pipelineID int64, name, path string) domain.ParsedPipelineSettings {
	return domain.ParsedPipelineSettings{PipelineID: pipelineID, PipelineName: name, PipelinePath: path, Environments: []domain.ParsedEnvironmentSettings{}}
}

func newServer(t *testing.T, svc *fakeService) (*httptest.Server, *progress.Hub) {
	t.Helper()
	return newTimedServer(t, svc, time.Minute)
}

func newTimedServer(t *testing.T, svc *fakeService, timeout time.Duration) (*httptest.Server, *progress.Hub) {
	t.Helper()
	hub := progress.NewHub()
	srv := httptest.NewServer(New(zap.NewNop(), svc, hub, 5, timeout).Handler())
	t.Cleanup(srv.Close)
	return srv, hub
}

func get(t *testing.T, url, auth string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestDashboard(t *testing.T) {
	svc := &fakeService{}
	srv, _ := newServer(t, svc)

	resp := get(t, srv.URL+"/api/acme/shop/dashboard?connectionId=c1", "Bearer pat")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var got domain.DashboardResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.True(t, got.Success)
	assert.Len(t, got.Pipelines, 1)

	assert.Equal(t, domain.Credentials{Token: "pat"}, svc.creds)
	assert.Equal(t, "acme", svc.org)
	assert.Equal(t, "shop", svc.project)
	assert.Equal(t, "c1", svc.connID)
}

func TestDashboard_ErrorStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("x: %w", domain.ErrUnauthorized), http.StatusUnauthorized},
		{domain.StageErr(domain.StageDefinitions, domain.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("boom"), http.StatusBadGateway},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
	}
	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			srv, _ := newServer(t, &fakeService{dashErr: tc.err})
			resp := get(t, srv.URL+"/api/acme/shop/dashboard", "")
			assert.Equal(t, tc.want, resp.StatusCode)
		})
	}
}

func TestRequestTimeout(t *testing.T) {
	srv, _ := newTimedServer(t, &fakeService{block: true}, 50*time.Millisecond)

	for _, path := range []string{
		"/api/acme/shop/dashboard",
		"/api/acme/shop/pipelines/7/runs",
		"/api/acme/shop/pipelines/7/config",
	} {
		t.Run(path, func(t *testing.T) {
			started := time.Now()
			resp := get(t, srv.URL+path, "")
			assert.Equal(t, http.StatusGatewayTimeout, resp.StatusCode)
			assert.Less(t, time.Since(started), 5*time.Second)
		})
	}
}

func TestRuns(t *testing.T) {
	svc := &fakeService{}
	srv, _ := newServer(t, svc)

	basic := "Basic " + base64.StdEncoding.EncodeToString([]byte(":secret"))
	resp := get(t, srv.URL+"/api/acme/shop/pipelines/42/runs?top=3", basic)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(42), svc.pipeline)
	assert.Equal(t, 3, svc.top)
	assert.Equal(t, "secret", svc.creds.Token)

	resp = get(t, srv.URL+"/api/acme/shop/pipelines/42/runs", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 5, svc.top)
	assert.Empty(t, svc.creds.Token)

	resp = get(t, srv.URL+"/api/acme/shop/pipelines/42/runs?top=lots", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = get(t, srv.URL+"/api/acme/shop/pipelines/abc/runs", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestConfigText(t *testing.T) {
	svc := &fakeService{}
	srv, _ := newServer(t, svc)

	resp := get(t, srv.URL+"/api/acme/shop/pipelines/7/config", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got domain.ConfigTextResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "/ci.yml", got.FileName)

	svc.configErr = fmt.Errorf(`pipeline "classic": %w`, domain.ErrNotYAMLPipeline)
	resp = get(t, srv.URL+"/api/acme/shop/pipelines/7/config", "")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestParse(t *testing.T) {
	srv, _ := newServer(t, &fakeService{})

	body := `{"text":"x","pipelineId":3,"name":"api","path":"\\team"}`
	resp, err := http.Post(srv.URL+"/api/parse", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got domain.ParsedPipelineSettings
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, int64(3), got.PipelineID)
	assert.Equal(t, "api", got.PipelineName)

	bad, err := http.Post(srv.URL+"/api/parse", "application/json", strings.NewReader("{"))
	require.NoError(t, err)
	defer func() { _ = bad.Body.Close() }()
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)
}

func TestHealthz(t *testing.T) {
	srv, _ := newServer(t, &fakeService{})
	assert.Equal(t, http.StatusOK, get(t, srv.URL+"/healthz", "").StatusCode)
}

func readEvent(t *testing.T, r *bufio.Reader) (string, string) {
	t.Helper()
	var event, data string
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "":
			return event, data
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		}
	}
}

func TestProgressStream(t *testing.T) {
	srv, hub := newServer(t, &fakeService{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/progress/conn-1", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	r := bufio.NewReader(resp.Body)

	event, data := readEvent(t, r)
	assert.Equal(t, "connected", event)
	assert.Equal(t, "conn-1", data)

	require.Eventually(t, func() bool { return hub.Subscribers("conn-1") == 1 }, time.Second, 10*time.Millisecond)
	require.NoError(t, hub.Push(ctx, "conn-1", "Loaded pipeline api (1/2)"))
	require.NoError(t, hub.Push(ctx, "other", "not for us"))

	event, data = readEvent(t, r)
	assert.Equal(t, "progress", event)
	assert.Equal(t, "Loaded pipeline api (1/2)", data)
}

func TestProgressStream_AssignsID(t *testing.T) {
	srv, _ := newServer(t, &fakeService{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/progress", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	event, data := readEvent(t, bufio.NewReader(resp.Body))
	assert.Equal(t, "connected", event)
	assert.Len(t, data, 36)
}

func TestCredentials(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, credentials(r).Token)

	r.Header.Set("Authorization", "Basic !!!")
	assert.Empty(t, credentials(r).Token)

	r.Header.Set("Authorization", "Token abc")
	assert.Empty(t, credentials(r).Token)

	r.Header.Set("Authorization", "bearer abc")
	assert.Equal(t, "abc", credentials(r).Token)
}
