// Package roomcast publishes local media into a video room and plays the
// other publishers of the room.
package roomcast

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"roomcast/api"
	"roomcast/coordinator"
	"roomcast/database/memory"
	"roomcast/janus"
	"roomcast/media"
	"roomcast/metric"
	"roomcast/signal"
	"roomcast/stream"
)

const shutdownTimeout = 5 * time.Second

// Roomcast contains the session components and configuration.
type Roomcast struct {
	config      Config
	streamCtx   *stream.Context
	recorder    *stream.EventRecorder
	signal      *signal.Signal
	metrics     *metric.Metrics
	coordinator *coordinator.Coordinator
	api         *api.Server
}

// New creates a new instance of Roomcast. A nil audio module plays and
// records nothing; nil sources disable camera and screen capture.
func New(config Config, audio media.AudioModule, sources media.SourceProvider) (*Roomcast, error) {
	sc := stream.NewContext(config.Display)
	fac, err := media.NewFactory(config.Media, sc, audio, sources)
	if err != nil {
		return nil, fmt.Errorf("failed to create peer connection factory: %w", err)
	}

	rec := stream.NewEventRecorder()
	met := metric.New(config.Metrics)
	sig := signal.New(config.Signal)
	cod := coordinator.New(config.Coordinator, coordinator.Dependencies{
		Transport: sig,
		Factory:   janus.NewPeerConnectionFactory(fac),
		Context:   sc,
		Recorder:  rec,
		Database:  memory.New(),
		Metrics:   met,
		OnDispose: fac.Dispose,
	})
	cod.AddListener(janus.ListenerFuncs{
		OnError: func(err error) {
			log.Error().Str("module", "roomcast").Err(err).Msg("session error")
		},
	})

	r := &Roomcast{
		config:      config,
		streamCtx:   sc,
		recorder:    rec,
		signal:      sig,
		metrics:     met,
		coordinator: cod,
	}
	if config.API.Enabled() {
		r.api = api.New(config.API, cod, met.Handler())
	}
	return r, nil
}

// Context returns the media configuration shared by every peer connection.
func (r *Roomcast) Context() *stream.Context {
	return r.streamCtx
}

// Recorder returns the recorder whose actions are sent to the room.
func (r *Roomcast) Recorder() *stream.EventRecorder {
	return r.recorder
}

// Coordinator returns the session coordinator.
func (r *Roomcast) Coordinator() *coordinator.Coordinator {
	return r.coordinator
}

// Start connects to the gateway and runs the session until ctx is done or
// the connection is lost. Everything is stopped before it returns.
func (r *Roomcast) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go r.metrics.UpdateSystemMetrics(ctx)
	if r.api != nil {
		go func() {
			if err := r.api.Start(); err != nil {
				log.Error().Str("module", "roomcast").Err(err).Msg("control server failed")
			}
		}()
	}

	if err := r.coordinator.Start(); err != nil {
		r.stop()
		return fmt.Errorf("failed to start session: %w", err)
	}
	if err := r.signal.Start(ctx, r.coordinator); err != nil {
		r.stop()
		return fmt.Errorf("failed to start signal: %w", err)
	}

	select {
	case <-ctx.Done():
	case <-r.signal.Done():
	}
	r.stop()

	if err := r.signal.Err(); err != nil {
		return fmt.Errorf("gateway connection lost: %w", err)
	}
	return nil
}

func (r *Roomcast) stop() {
	r.coordinator.Stop()
	r.signal.Stop()

	if r.api != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := r.api.Stop(ctx); err != nil {
			log.Warn().Str("module", "roomcast").Err(err).Msg("failed to stop control server")
		}
	}
	log.Info().Str("module", "roomcast").Msg("stopped")
}
