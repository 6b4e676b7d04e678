package metric_test

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roomcast/metric"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  metric.Config
		wantErr error
	}{
		{
			name:   "given default interval when validated then return no error",
			config: metric.Config{Namespace: metric.DefaultNamespace, UpdateInterval: metric.DefaultUpdateInterval},
		},
		{
			name:    "given zero interval when validated then return invalid interval",
			config:  metric.Config{UpdateInterval: 0},
			wantErr: metric.ErrInvalidInterval,
		},
		{
			name:    "given negative interval when validated then return invalid interval",
			config:  metric.Config{UpdateInterval: -time.Second},
			wantErr: metric.ErrInvalidInterval,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestCounters(t *testing.T) {
	m := metric.New(metric.Config{Namespace: "test", UpdateInterval: time.Second})

	m.ObserveMessage("Success")
	m.ObserveMessage("Success")
	m.ObserveMessage("Error")
	m.IncrementSent()
	m.ObserveKeepAlive(nil)
	m.ObserveKeepAlive(errors.New("closed"))
	m.ObserveKeepAlive(nil)
	m.IncrementGatewayErrors()
	m.IncrementSessionTimeouts()
	m.IncrementWebRTCConnections()
	m.IncrementWebRTCConnections()
	m.DecrementWebRTCConnections()
	m.SetSubscribers(3)

	count, err := testutil.GatherAndCount(m.Registry(), "test_gateway_messages_received_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = testutil.GatherAndCount(m.Registry(), "test_keepalives_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	body := scrape(t, m)
	assert.Contains(t, body, `test_gateway_messages_received_total{kind="Success"} 2`)
	assert.Contains(t, body, `test_keepalives_total{result="failed"} 1`)
	assert.Contains(t, body, `test_keepalives_total{result="ok"} 2`)
	assert.Contains(t, body, "test_webrtc_connections 1")
	assert.Contains(t, body, "test_subscribers 3")
	assert.Contains(t, body, "test_session_timeouts_total 1")
}

func TestCollectSystemMetrics(t *testing.T) {
	m := metric.New(metric.Config{Namespace: "test", UpdateInterval: time.Second})

	require.NoError(t, m.CollectSystemMetrics())

	body := scrape(t, m)
	assert.Contains(t, body, "test_memory_usage_bytes")
	assert.Contains(t, body, "test_cpu_usage_percentage")
}

func scrape(t *testing.T, m *metric.Metrics) string {
	t.Helper()
	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}
