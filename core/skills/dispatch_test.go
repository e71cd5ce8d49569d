package skills

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreerrors "github.com/adalundhe/parley/core/errors"
)

func registryWith(d DispatcherConfig) *Registry {
	return NewRegistry(RegistryConfig{Dispatcher: NewDispatcher(d)})
}

func TestRemoteJSONBody(t *testing.T) {
	var gotHeader string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("X-Token")
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"forecast":"sunny"}`))
	}))
	defer srv.Close()

	r := registryWith(DispatcherConfig{})
	r.RegisterAll(NewSkill("weather").Remote(srv.URL, "POST", 0).Header("X-Token", "t1"))

	res := r.Execute(context.Background(), "weather", Params{"city": "Oslo"}, ExecContext{})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, map[string]any{"forecast": "sunny"}, res.Result)
	assert.Equal(t, "t1", gotHeader)
	assert.Equal(t, "Oslo", gotBody["city"])

	info, _ := r.GetSkill("weather")
	assert.Equal(t, int64(1), info.ExecutionCount)
}

func TestRemoteFormAndQueryEncoding(t *testing.T) {
	var form, query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			query = r.URL.Query().Get("q")
		} else {
			_ = r.ParseForm()
			form = r.PostForm.Get("count")
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	r := registryWith(DispatcherConfig{})
	r.RegisterAll(
		NewSkill("form").Remote(srv.URL, "POST", 0).FormData(),
		NewSkill("lookup").Remote(srv.URL, "GET", 0),
	)

	res := r.Execute(context.Background(), "form", Params{"count": 3}, ExecContext{})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "ok", res.Result)
	assert.Equal(t, "3", form)

	res = r.Execute(context.Background(), "lookup", Params{"q": "golang"}, ExecContext{})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "golang", query)
}

func TestRemoteNon2xxCarriesStatus(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	r := registryWith(DispatcherConfig{RetryCount: 1})
	r.RegisterAll(NewSkill("flaky").Remote(srv.URL, "POST", 0))

	res := r.Execute(context.Background(), "flaky", nil, ExecContext{})
	assert.False(t, res.Success)
	assert.Equal(t, coreerrors.KindRemoteAPI, res.ErrorKind)
	assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)
	assert.Equal(t, int32(2), hits.Load())

	info, _ := r.GetSkill("flaky")
	assert.Zero(t, info.ExecutionCount)
}

func TestRemoteTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	r := registryWith(DispatcherConfig{})
	r.RegisterAll(NewSkill("slow").Remote(srv.URL, "POST", 50*time.Millisecond))

	res := r.Execute(context.Background(), "slow", nil, ExecContext{})
	assert.False(t, res.Success)
	assert.Equal(t, coreerrors.KindTimeout, res.ErrorKind)
}

func TestRemoteHonorsCallerCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	r := registryWith(DispatcherConfig{})
	r.RegisterAll(NewSkill("stuck").Remote(srv.URL, "POST", time.Minute))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	res := r.Execute(ctx, "stuck", nil, ExecContext{})
	assert.False(t, res.Success)
	assert.Equal(t, coreerrors.KindTimeout, res.ErrorKind)
}

func TestWorkflowDisabledFailsFast(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	tests := []struct {
		name     string
		settings WorkflowSettings
	}{
		{"no key", WorkflowSettings{APIURL: srv.URL}},
		{"no url", WorkflowSettings{APIKey: "k"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := registryWith(DispatcherConfig{Workflow: tt.settings})
			r.RegisterAll(NewSkill("sync_crm").Workflow("wf-1"))

			res := r.Execute(context.Background(), "sync_crm", Params{"a": 1}, ExecContext{})
			assert.False(t, res.Success)
			assert.Equal(t, coreerrors.KindConfiguration, res.ErrorKind)
		})
	}
	assert.Zero(t, hits.Load())
}

func TestWorkflowTrigger(t *testing.T) {
	var key, path string
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key = r.Header.Get("X-API-Key")
		path = r.URL.Path
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		_, _ = w.Write([]byte(`{"executionId":"e1"}`))
	}))
	defer srv.Close()

	r := registryWith(DispatcherConfig{Workflow: WorkflowSettings{APIURL: srv.URL + "/", APIKey: "secret"}})
	r.RegisterAll(NewSkill("sync_crm").Workflow("wf-1"))

	res := r.Execute(context.Background(), "sync_crm", Params{"contact": "ada"}, ExecContext{UserID: "u1"})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, map[string]any{"executionId": "e1"}, res.Result)
	assert.Equal(t, "secret", key)
	assert.Equal(t, "/webhook/wf-1", path)
	assert.Equal(t, "wf-1", body["workflowId"])
	assert.Equal(t, map[string]any{"contact": "ada"}, body["data"])
	assert.Equal(t, "u1", body["context"].(map[string]any)["userId"])
}
