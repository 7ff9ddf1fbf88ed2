package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lss/internal/model/task"
	"lss/internal/pkg/version"
)

func newBackend(t *testing.T, up *atomic.Bool) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/ping", func(w http.ResponseWriter, r *http.Request) {
		if up != nil && !up.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"message":"starting"}`))
			return
		}
		assert.Equal(t, version.GetUserAgent(), r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(`{"message":"pong"}`))
	})
	mux.HandleFunc("/submit", func(w http.ResponseWriter, r *http.Request) {
		var desc task.QueueDescriptor
		require.NoError(t, json.NewDecoder(r.Body).Decode(&desc))
		if len(desc.Tasks) == 0 {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"accepted":false,"error":"invalid","violations":[{"field":"tasks","message":"must not be empty"}]}`))
			return
		}
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"accepted": true, "queue": desc.Name, "id": "sub-1"})
	})
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"pending":0,"processed":2}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPClient_PingSubmitStatus(t *testing.T) {
	srv := newBackend(t, nil)
	c := NewHTTPClient(srv.URL+"/", time.Second)
	ctx := context.Background()

	require.NoError(t, c.Ping(ctx))

	resp, err := c.Submit(ctx, task.QueueDescriptor{
		Type:  task.DescriptorTypeQueue,
		Name:  "nightly",
		Tasks: []task.TaskDescriptor{{Type: task.DescriptorTypeTask, ExecutableFilePath: "true"}},
	})
	require.NoError(t, err)
	assert.True(t, resp.Accepted)
	assert.Equal(t, "nightly", resp.Queue)
	assert.Equal(t, "sub-1", resp.ID)

	raw, err := c.Status(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"pending":0,"processed":2}`, string(raw))
}

func TestHTTPClient_SubmitRejected(t *testing.T) {
	srv := newBackend(t, nil)
	c := NewHTTPClient(srv.URL, time.Second)

	resp, err := c.Submit(context.Background(), task.QueueDescriptor{Type: task.DescriptorTypeQueue, Name: "empty"})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.False(t, resp.Accepted)
	require.Len(t, resp.Violations, 1)
	assert.Equal(t, "tasks", resp.Violations[0].Field)
}

func TestHTTPClient_PingUnreachable(t *testing.T) {
	srv := newBackend(t, nil)
	url := srv.URL
	srv.Close()

	c := NewHTTPClient(url, 200*time.Millisecond)
	assert.Error(t, c.Ping(context.Background()))
}

func TestLauncher_AlreadyRunningDoesNotStart(t *testing.T) {
	srv := newBackend(t, nil)
	started := false
	l := &Launcher{start: func(string, []string) error { started = true; return nil }}

	require.NoError(t, l.EnsureRunning(context.Background(), NewHTTPClient(srv.URL, time.Second)))
	assert.False(t, started)
}

func TestLauncher_StartsAndWaits(t *testing.T) {
	var up atomic.Bool
	srv := newBackend(t, &up)

	var gotExe string
	var gotArgs []string
	l := &Launcher{
		Executable: "/opt/lss/lss",
		Args:       []string{"serve", "--config", "cfg.yaml"},
		Retries:    5,
		Interval:   20 * time.Millisecond,
		start: func(exe string, args []string) error {
			gotExe, gotArgs = exe, args
			up.Store(true)
			return nil
		},
	}

	require.NoError(t, l.EnsureRunning(context.Background(), NewHTTPClient(srv.URL, time.Second)))
	assert.Equal(t, "/opt/lss/lss", gotExe)
	assert.Equal(t, []string{"serve", "--config", "cfg.yaml"}, gotArgs)
}

func TestLauncher_GivesUpAfterRetries(t *testing.T) {
	var up atomic.Bool
	srv := newBackend(t, &up)

	l := &Launcher{
		Executable: "/opt/lss/lss",
		Retries:    3,
		Interval:   10 * time.Millisecond,
		start:      func(string, []string) error { return nil },
	}

	err := l.EnsureRunning(context.Background(), NewHTTPClient(srv.URL, time.Second))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempts")
}
