package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryLifecycle(t *testing.T) {
	t.Cleanup(Reset)

	Reset()
	assert.False(t, IsEnabled())
	assert.Nil(t, GetRegistry())
	assert.Nil(t, NewMigrationMetrics())

	reg := InitRegistry()
	require.NotNil(t, reg)
	assert.True(t, IsEnabled())
	assert.Same(t, reg, GetRegistry())

	Reset()
	assert.False(t, IsEnabled())
}

func TestPushDisabledIsNoop(t *testing.T) {
	Reset()
	assert.NoError(t, Push(context.Background(), "http://127.0.0.1:1", "dirmigrate", nil))
}

func TestPush(t *testing.T) {
	t.Cleanup(Reset)

	var (
		method string
		path   string
		body   string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		path = r.URL.Path
		b, _ := io.ReadAll(r.Body)
		body = string(b)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	reg := InitRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "dirmigrate_test_total", Help: "test"})
	reg.MustRegister(c)
	c.Inc()

	err := Push(context.Background(), srv.URL, "dirmigrate", map[string]string{"pool": "eu-west-2_abc"})
	require.NoError(t, err)

	assert.Equal(t, http.MethodPut, method)
	assert.Equal(t, "/metrics/job/dirmigrate/pool/eu-west-2_abc", path)
	assert.Contains(t, body, "dirmigrate_test_total")
}

func TestPushFailure(t *testing.T) {
	t.Cleanup(Reset)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	InitRegistry()
	err := Push(context.Background(), srv.URL, "dirmigrate", nil)
	assert.ErrorContains(t, err, srv.URL)
}
