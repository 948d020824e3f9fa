package metrics

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryLifecycle(t *testing.T) {
	ResetRegistry()
	t.Cleanup(ResetRegistry)

	assert.False(t, IsEnabled())
	assert.Nil(t, GetRegistry())

	reg := InitRegistry()
	require.NotNil(t, reg)
	assert.True(t, IsEnabled())
	assert.Same(t, reg, InitRegistry())
	assert.Same(t, reg, GetRegistry())
}

func startServer(t *testing.T, health HealthFunc) *Server {
	t.Helper()
	srv := NewServer(0, health)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(ctx) }()

	require.Eventually(t, func() bool { return srv.Addr() != "" }, 2*time.Second, 10*time.Millisecond)
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-errCh:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("metrics server did not stop")
		}
	})
	return srv
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestServerEndpoints(t *testing.T) {
	ResetRegistry()
	t.Cleanup(ResetRegistry)
	reg := InitRegistry()

	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "dittosh_test_total", Help: "test"})
	reg.MustRegister(c)
	c.Add(3)

	srv := startServer(t, func() map[string]any { return map[string]any{"sessions": 2} })
	base := "http://" + srv.Addr()

	t.Run("Health", func(t *testing.T) {
		code, body := get(t, base+"/health")
		assert.Equal(t, http.StatusOK, code)

		var got map[string]any
		require.NoError(t, json.Unmarshal([]byte(body), &got))
		assert.Equal(t, "ok", got["status"])
		assert.EqualValues(t, 2, got["sessions"])
	})

	t.Run("Metrics", func(t *testing.T) {
		code, body := get(t, base+"/metrics")
		assert.Equal(t, http.StatusOK, code)
		assert.True(t, strings.Contains(body, "dittosh_test_total 3"), body)
		assert.Contains(t, body, "go_goroutines")
	})
}

func TestServerWithoutRegistry(t *testing.T) {
	ResetRegistry()
	srv := startServer(t, nil)

	code, _ := get(t, "http://"+srv.Addr()+"/metrics")
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = get(t, "http://"+srv.Addr()+"/health")
	assert.Equal(t, http.StatusOK, code)
}
