package offline

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticMonitorNotifiesOnChange(t *testing.T) {
	m := NewStaticMonitor(true)
	var got []bool
	unsubscribe := m.Subscribe(func(online bool) { got = append(got, online) })

	m.SetOnline(true)
	m.SetOnline(false)
	m.SetOnline(false)
	m.SetOnline(true)
	assert.Equal(t, []bool{false, true}, got)

	unsubscribe()
	unsubscribe()
	m.SetOnline(false)
	assert.Len(t, got, 2)
	assert.False(t, m.Online())
}

func TestProbeMonitor(t *testing.T) {
	var heads int
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		if r.Method == http.MethodHead {
			heads++
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	m := NewProbeMonitor(ProbeConfig{URL: srv.URL, Timeout: time.Second})
	changes := make(chan bool, 4)
	defer m.Subscribe(func(online bool) { changes <- online })()

	assert.True(t, m.Probe(context.Background()))
	mu.Lock()
	assert.Equal(t, 1, heads)
	mu.Unlock()

	srv.Close()
	assert.False(t, m.Probe(context.Background()))
	assert.False(t, m.Online())
	require.Len(t, changes, 1)
	assert.False(t, <-changes)
}

func TestProbeMonitorStartStop(t *testing.T) {
	probes := make(chan struct{}, 16)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		select {
		case probes <- struct{}{}:
		default:
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := NewProbeMonitor(ProbeConfig{URL: srv.URL, Interval: 10 * time.Millisecond})
	m.Start(context.Background())
	m.Start(context.Background())

	for i := 0; i < 2; i++ {
		select {
		case <-probes:
		case <-time.After(2 * time.Second):
			t.Fatal("monitor did not probe")
		}
	}
	m.Stop()
	m.Stop()
	assert.True(t, m.Online())
}
