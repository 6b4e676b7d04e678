package roomcast_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roomcast/api"
	"roomcast/coordinator"
	"roomcast/media"
	"roomcast/metric"
	"roomcast/pkg/socket"
	"roomcast/roomcast"
	"roomcast/signal"
)

const waitTimeout = 5 * time.Second

type frame map[string]any

// gateway answers info and create, and records every request verb.
type gateway struct {
	server *httptest.Server
	verbs  chan frame
	conns  chan *socket.WebSocket
}

func newGateway(t *testing.T) *gateway {
	t.Helper()
	g := &gateway{
		verbs: make(chan frame, 32),
		conns: make(chan *socket.WebSocket, 1),
	}
	g.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := socket.New(w, r, signal.DefaultSubprotocol)
		if err != nil {
			return
		}
		g.conns <- ws
		for {
			data, err := ws.ReadMessage()
			if err != nil {
				return
			}
			var f frame
			if err := json.Unmarshal(data, &f); err != nil {
				continue
			}
			g.verbs <- f

			switch f["janus"] {
			case "info":
				_ = ws.WriteJSON(frame{"janus": "server_info", "transaction": f["transaction"], "session-timeout": 60})
			case "create":
				_ = ws.WriteJSON(frame{"janus": "success", "transaction": f["transaction"], "data": frame{"id": 7}})
			}
		}
	}))
	t.Cleanup(g.server.Close)
	return g
}

func (g *gateway) waitFor(t *testing.T, verb string) frame {
	t.Helper()
	deadline := time.After(waitTimeout)
	for {
		select {
		case f := <-g.verbs:
			if f["janus"] == verb {
				return f
			}
		case <-deadline:
			t.Fatalf("gateway never received %q", verb)
			return nil
		}
	}
}

func validConfig(url string) roomcast.Config {
	return roomcast.Config{
		Display: "tester",
		Signal: signal.Config{
			URL:              url,
			Subprotocol:      signal.DefaultSubprotocol,
			HandshakeTimeout: signal.DefaultHandshakeTimeout,
		},
		Media: media.Config{ICEServers: []string{}},
		Coordinator: coordinator.Config{
			RoomID:          1234,
			Publishers:      coordinator.DefaultPublishers,
			Bitrate:         coordinator.DefaultBitrate,
			KeepAlivePeriod: coordinator.DefaultKeepAlivePeriod,
		},
		Metrics: metric.Config{Namespace: metric.DefaultNamespace, UpdateInterval: metric.DefaultUpdateInterval},
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(c *roomcast.Config)
		wantErr error
	}{
		{
			name:   "given valid config when validated then return nil",
			modify: func(*roomcast.Config) {},
		},
		{
			name:    "given http gateway when validated then return invalid url",
			modify:  func(c *roomcast.Config) { c.Signal.URL = "http://localhost:8088" },
			wantErr: signal.ErrInvalidURL,
		},
		{
			name:    "given reversed port range when validated then return invalid range",
			modify:  func(c *roomcast.Config) { c.Media.MinUDPPort, c.Media.MaxUDPPort = 6000, 5000 },
			wantErr: media.ErrInvalidPortRange,
		},
		{
			name:    "given zero keep-alive when validated then return invalid period",
			modify:  func(c *roomcast.Config) { c.Coordinator.KeepAlivePeriod = 0 },
			wantErr: coordinator.ErrInvalidKeepAlivePeriod,
		},
		{
			name:    "given zero update interval when validated then return invalid interval",
			modify:  func(c *roomcast.Config) { c.Metrics.UpdateInterval = 0 },
			wantErr: metric.ErrInvalidInterval,
		},
		{
			name:    "given out of range api port when validated then return invalid port",
			modify:  func(c *roomcast.Config) { c.API.Port = 70000 },
			wantErr: api.ErrInvalidPort,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig(signal.DefaultURL)
			tt.modify(&c)
			err := c.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestRoomcastSession(t *testing.T) {
	t.Run("given gateway when context cancelled then destroy session", func(t *testing.T) {
		g := newGateway(t)
		r, err := roomcast.New(validConfig("ws"+strings.TrimPrefix(g.server.URL, "http")), nil, nil)
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- r.Start(ctx) }()

		g.waitFor(t, "info")
		g.waitFor(t, "create")
		attach := g.waitFor(t, "attach")
		assert.Equal(t, "janus.plugin.videoroom", attach["plugin"])
		assert.EqualValues(t, 7, attach["session_id"])
		assert.True(t, r.Coordinator().KeepAliveActive())

		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(waitTimeout):
			t.Fatal("Start did not return")
		}

		destroy := g.waitFor(t, "destroy")
		assert.EqualValues(t, 7, destroy["session_id"])
		assert.False(t, r.Coordinator().KeepAliveActive())
	})

	t.Run("given gateway drops connection when running then return error", func(t *testing.T) {
		g := newGateway(t)
		r, err := roomcast.New(validConfig("ws"+strings.TrimPrefix(g.server.URL, "http")), nil, nil)
		require.NoError(t, err)

		done := make(chan error, 1)
		go func() { done <- r.Start(context.Background()) }()

		var ws *socket.WebSocket
		select {
		case ws = <-g.conns:
		case <-time.After(waitTimeout):
			t.Fatal("gateway was not dialed")
		}
		g.waitFor(t, "info")
		require.NoError(t, ws.Close())

		select {
		case err := <-done:
			assert.ErrorContains(t, err, "gateway connection lost")
		case <-time.After(waitTimeout):
			t.Fatal("Start did not return")
		}
	})

	t.Run("given unreachable gateway when started then return error", func(t *testing.T) {
		r, err := roomcast.New(validConfig("ws://127.0.0.1:1"), nil, nil)
		require.NoError(t, err)

		assert.ErrorContains(t, r.Start(context.Background()), "failed to start signal")
	})
}
