package api_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roomcast/api"
	"roomcast/coordinator"
	"roomcast/database"
	"roomcast/janus"
	"roomcast/metric"
)

type fakeController struct {
	status       coordinator.Status
	participants []*database.PublisherInfo
	startErr     error
	stopErr      error
	started      int
	stopped      []uint64
}

func (f *fakeController) Status() coordinator.Status {
	return f.status
}

func (f *fakeController) Participants() ([]*database.PublisherInfo, error) {
	return f.participants, nil
}

func (f *fakeController) StartRemoteSpeech() error {
	f.started++
	return f.startErr
}

func (f *fakeController) StopRemoteSpeech(id uint64) error {
	f.stopped = append(f.stopped, id)
	return f.stopErr
}

func serve(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  api.Config
		enabled bool
		wantErr bool
	}{
		{name: "given default port when validated then return nil", config: api.Config{Port: api.DefaultPort}, enabled: true},
		{name: "given zero port when validated then disable server", config: api.Config{Port: 0}},
		{name: "given negative port when validated then return error", config: api.Config{Port: -1}, enabled: true, wantErr: true},
		{name: "given too large port when validated then return error", config: api.Config{Port: 70000}, enabled: true, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, api.ErrInvalidPort)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.enabled, tt.config.Enabled())
		})
	}
}

func TestRouter(t *testing.T) {
	t.Run("given session when status requested then return snapshot", func(t *testing.T) {
		ctrl := &fakeController{status: coordinator.Status{SessionID: 7, HandleID: 42, RoomID: 1234, State: "PublishToRoom", KeepAlive: true}}
		rec := serve(t, api.NewRouter(ctrl, nil, false), http.MethodGet, "/status")

		require.Equal(t, http.StatusOK, rec.Code)
		var got coordinator.Status
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, ctrl.status, got)
	})

	t.Run("given publishers when participants requested then return them", func(t *testing.T) {
		ctrl := &fakeController{participants: []*database.PublisherInfo{{ID: 99, RoomID: 1234, Display: "alice", Talking: true}}}
		rec := serve(t, api.NewRouter(ctrl, nil, false), http.MethodGet, "/participants")

		require.Equal(t, http.StatusOK, rec.Code)
		var got []database.PublisherInfo
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		require.Len(t, got, 1)
		assert.Equal(t, uint64(99), got[0].ID)
		assert.Equal(t, "alice", got[0].Display)
		assert.True(t, got[0].Talking)
	})

	t.Run("given cors preflight when requested then answer without handler", func(t *testing.T) {
		ctrl := &fakeController{}
		rec := serve(t, api.NewRouter(ctrl, nil, false), http.MethodOptions, "/speech")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Zero(t, ctrl.started)
	})

	t.Run("given metrics handler when scraped then expose registry", func(t *testing.T) {
		m := metric.New(metric.Config{Namespace: metric.DefaultNamespace, UpdateInterval: metric.DefaultUpdateInterval})
		m.IncrementWebRTCConnections()
		rec := serve(t, api.NewRouter(&fakeController{}, m.Handler(), false), http.MethodGet, "/metrics")

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "roomcast_webrtc_connections 1")
	})

	t.Run("given no metrics handler when scraped then return not found", func(t *testing.T) {
		rec := serve(t, api.NewRouter(&fakeController{}, nil, false), http.MethodGet, "/metrics")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestSpeechRoutes(t *testing.T) {
	tests := []struct {
		name        string
		method      string
		path        string
		startErr    error
		stopErr     error
		wantStatus  int
		wantStarted int
		wantStopped []uint64
	}{
		{
			name:        "given joined room when speech started then return no content",
			method:      http.MethodPost,
			path:        "/speech",
			wantStatus:  http.StatusNoContent,
			wantStarted: 1,
		},
		{
			name:        "given room not joined when speech started then return conflict",
			method:      http.MethodPost,
			path:        "/speech",
			startErr:    janus.ErrNotJoined,
			wantStatus:  http.StatusConflict,
			wantStarted: 1,
		},
		{
			name:        "given known speaker when speech stopped then return no content",
			method:      http.MethodDelete,
			path:        "/speech/99",
			wantStatus:  http.StatusNoContent,
			wantStopped: []uint64{99},
		},
		{
			name:        "given unknown speaker when speech stopped then return not found",
			method:      http.MethodDelete,
			path:        "/speech/5",
			stopErr:     fmt.Errorf("5: %w", coordinator.ErrUnknownSubscriber),
			wantStatus:  http.StatusNotFound,
			wantStopped: []uint64{5},
		},
		{
			name:        "given gateway failure when speech stopped then return internal error",
			method:      http.MethodDelete,
			path:        "/speech/0",
			stopErr:     errors.New("write: broken pipe"),
			wantStatus:  http.StatusInternalServerError,
			wantStopped: []uint64{0},
		},
		{
			name:       "given malformed id when speech stopped then return bad request",
			method:     http.MethodDelete,
			path:       "/speech/alice",
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := &fakeController{startErr: tt.startErr, stopErr: tt.stopErr}
			rec := serve(t, api.NewRouter(ctrl, nil, false), tt.method, tt.path)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantStarted, ctrl.started)
			assert.Equal(t, tt.wantStopped, ctrl.stopped)
		})
	}
}
