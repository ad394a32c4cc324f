package azdo_http

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/davarch/pipedash/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	f := NewFactory(srv.URL+"/", "pat", 2*time.Second)
	f.retryFor = 2 * time.Second
	p, err := f.Platform(domain.Credentials{}, "acme")
	require.NoError(t, err)
	return p.(*Client)
}

func TestFactory_TokenFallback(t *testing.T) {
	f := NewFactory("https://dev.azure.com", "", time.Second)
	_, err := f.Platform(domain.Credentials{}, "acme")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	p, err := f.Platform(domain.Credentials{Token: "t"}, "acme")
	require.NoError(t, err)
	assert.Equal(t, "https://dev.azure.com/acme/Web%20Shop", p.ProjectURL("Web Shop"))

	_, err = f.Platform(domain.Credentials{Token: "t"}, " ")
	assert.Error(t, err)
}

func TestClient_SendsBasicAuthAndReadsProject(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		want := "Basic " + base64.StdEncoding.EncodeToString([]byte(":pat"))
		if r.Header.Get("Authorization") != want {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		assert.Equal(t, "/acme/_apis/projects/shop", r.URL.Path)
		assert.Equal(t, apiVersion, r.URL.Query().Get("api-version"))
		_, _ = fmt.Fprint(w, `{"id":"p1","name":"shop","_links":{"web":{"href":"https://dev.azure.com/acme/shop"}}}`)
	}))

	p, err := c.Project(context.Background(), "shop")
	require.NoError(t, err)
	assert.Equal(t, "https://dev.azure.com/acme/shop", p.WebURL)
	assert.Equal(t, "p1", p.ID)
}

func TestClient_DefinitionsFollowsContinuation(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/acme/shop/_apis/build/definitions", r.URL.Path)
		if r.URL.Query().Get("continuationToken") == "" {
			w.Header().Set("X-MS-ContinuationToken", "next")
			_, _ = fmt.Fprint(w, `{"count":1,"value":[{"id":1,"name":"a","path":"\\"}]}`)
			return
		}
		_, _ = fmt.Fprint(w, `{"count":1,"value":[{"id":2,"name":"b","path":"\\x"}]}`)
	}))

	defs, err := c.Definitions(context.Background(), "shop")
	require.NoError(t, err)
	assert.Equal(t, []domain.DefinitionRef{{ID: 1, Name: "a", Path: `\`}, {ID: 2, Name: "b", Path: `\x`}}, defs)
}

func TestClient_Definition(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/acme/shop/_apis/build/definitions/7":
			_, _ = fmt.Fprint(w, `{"id":7,"name":"api","path":"\\","queueStatus":"enabled",
				"repository":{"id":"r1","name":"api","type":"TfsGit","defaultBranch":"refs/heads/main"},
				"variableGroups":[{"id":3,"name":"common"}],
				"process":{"type":2,"yamlFilename":"/azure-pipelines.yml"}}`)
		case "/acme/shop/_apis/build/definitions/8":
			_, _ = fmt.Fprint(w, `{"id":8,"name":"classic","process":{"type":1}}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	d, err := c.Definition(context.Background(), "shop", 7)
	require.NoError(t, err)
	assert.Equal(t, "/azure-pipelines.yml", d.ConfigPath)
	require.NotNil(t, d.Repository)
	assert.Equal(t, "r1", d.Repository.ID)
	assert.Equal(t, "refs/heads/main", d.Repository.DefaultBranch)
	assert.Equal(t, []domain.DeclaredVariableGroup{{ID: 3, Name: "common"}}, d.VariableGroups)

	d, err = c.Definition(context.Background(), "shop", 8)
	require.NoError(t, err)
	assert.Empty(t, d.ConfigPath)
	assert.Nil(t, d.Repository)

	_, err = c.Definition(context.Background(), "shop", 9)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestClient_Builds(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "7", q.Get("definitions"))
		assert.Equal(t, "1", q.Get("$top"))
		assert.Equal(t, "queueTimeDescending", q.Get("queryOrder"))
		_, _ = fmt.Fprint(w, `{"count":1,"value":[{
			"id":900,"buildNumber":"20260101.1","status":"completed","result":"succeeded",
			"startTime":"2026-01-01T10:00:00Z","finishTime":"2026-01-01T10:01:00Z",
			"sourceBranch":"refs/heads/main","sourceVersion":"abc","reason":"buildCompletion",
			"requestedFor":{"displayName":"Ada"},"requestedBy":{"displayName":"svc"},
			"_links":{"web":{"href":"https://build/900"}},
			"triggeredByBuild":{"definition":{"name":"upstream"}}}]}`)
	}))

	builds, err := c.Builds(context.Background(), "shop", 7, 1)
	require.NoError(t, err)
	require.Len(t, builds, 1)

	b := builds[0]
	assert.Equal(t, int64(900), b.ID)
	assert.Equal(t, "Ada", b.RequestedFor)
	assert.Equal(t, "svc", b.RequestedBy)
	assert.Equal(t, "upstream", b.TriggeringPipelineName)
	assert.Equal(t, "https://build/900", b.WebURL)
	require.NotNil(t, b.StartTime)
	require.NotNil(t, b.FinishTime)
	assert.Equal(t, time.Minute, b.FinishTime.Sub(*b.StartTime))
	assert.Nil(t, b.QueueTime)
}

func TestClient_VariableGroups(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/acme/shop/_apis/distributedtask/variablegroups", r.URL.Path)
		_, _ = fmt.Fprint(w, `{"count":1,"value":[{"id":3,"name":"common","description":"d",
			"variables":{"b":{"value":"2"},"a":{"value":null,"isSecret":true},"c":{"value":"3","isReadOnly":true}}}]}`)
	}))

	groups, err := c.VariableGroups(context.Background(), "shop")
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, []domain.Variable{
		{Name: "a", IsSecret: true},
		{Name: "b", Value: "2"},
		{Name: "c", Value: "3", IsReadOnly: true},
	}, groups[0].Variables)
}

func TestClient_FileContent(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/acme/shop/_apis/git/repositories/r1/items", r.URL.Path)
		assert.Equal(t, "/azure-pipelines.yml", r.URL.Query().Get("path"))
		assert.Equal(t, "main", r.URL.Query().Get("versionDescriptor.version"))
		assert.Equal(t, "text/plain", r.Header.Get("Accept"))
		_, _ = fmt.Fprint(w, "trigger: none\n")
	}))

	text, err := c.FileContent(context.Background(), "shop", "r1", "/azure-pipelines.yml", "main")
	require.NoError(t, err)
	assert.Equal(t, "trigger: none\n", text)
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = fmt.Fprint(w, `{"count":0,"value":[]}`)
	}))

	groups, err := c.VariableGroups(context.Background(), "shop")
	require.NoError(t, err)
	assert.Empty(t, groups)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_UnauthorizedIsPermanent(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNonAuthoritativeInfo)
	}))

	_, err := c.Definitions(context.Background(), "shop")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.Equal(t, int32(1), calls.Load())
}
