package control

import (
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-tcp/internal/log"
)

func TestMetricsServer(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.Accepted("127.0.0.1:443")

	s := NewMetricsServer("127.0.0.1:0", m, log.Discard())
	require.NoError(t, s.Start())
	defer s.Stop(context.Background())

	resp, err := http.Get("http://" + s.Addr() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `hioload_tcp_accepted_total{listener="127.0.0.1:443"} 1`)
}
