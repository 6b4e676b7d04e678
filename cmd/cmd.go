// Package cmd parse args to configure application.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"roomcast/api"
	"roomcast/coordinator"
	"roomcast/media"
	"roomcast/metric"
	"roomcast/roomcast"
	"roomcast/signal"
)

// ErrUnparsedArgs is returned for positional arguments.
var ErrUnparsedArgs = errors.New("some args are not parsed")

// Run starts the application.
func Run() {
	config, err := SetupConfig(os.Stderr, os.Args[1:])
	if err != nil {
		if !errors.Is(err, pflag.ErrHelp) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
	setupLogger(os.Stderr, config.Debug)

	ctx, stop := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r, err := roomcast.New(config, nil, nil)
	if err != nil {
		log.Error().Str("module", "cmd").Err(err).Msg("failed to create roomcast")
		os.Exit(1)
	}
	if err := r.Start(ctx); err != nil {
		log.Error().Str("module", "cmd").Err(err).Msg("roomcast ended")
		os.Exit(1)
	}
}

func setupLogger(w io.Writer, debug bool) {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
}

// SetupConfig sets up and returns the configuration.
func SetupConfig(w io.Writer, args []string) (roomcast.Config, error) {
	config, err := Parse(w, args)
	if err != nil {
		return config, err
	}
	if err = config.Validate(); err != nil {
		return config, err
	}
	return config, nil
}

// Parse parses the command line arguments. Values from the file named by
// --config apply unless the flag is given explicitly.
func Parse(w io.Writer, args []string) (roomcast.Config, error) {
	fs := pflag.NewFlagSet("roomcast", pflag.ContinueOnError)
	fs.SetOutput(w)
	fs.String("config", "", "yaml config file path")
	fs.String("gateway", signal.DefaultURL, "gateway websocket url")
	fs.Uint64("room", 0, "room id, 0 lets the gateway pick one")
	fs.String("secret", "", "room secret")
	fs.String("display", "", "display name in the room")
	fs.String("description", "", "room description")
	fs.Int("bitrate", coordinator.DefaultBitrate, "room bitrate cap in bps")
	fs.Bool("record", false, "record the room on the gateway")
	fs.Duration("keepalive", coordinator.DefaultKeepAlivePeriod, "keep-alive period when the gateway reports no session timeout")
	fs.Int("min-port", media.DefaultMinUDPPort, "minimum UDP port for WebRTC")
	fs.Int("max-port", media.DefaultMaxUDPPort, "maximum UDP port for WebRTC")
	fs.StringSlice("stun", []string{media.DefaultSTUNServer}, "STUN/TURN server urls")
	fs.Int("api-port", api.DefaultPort, "control server port, 0 disables it")
	fs.Bool("debug", false, "debug mode")

	if err := fs.Parse(args); err != nil {
		return roomcast.Config{}, fmt.Errorf("failed to parse args: %w", err)
	}
	if fs.NArg() != 0 {
		return roomcast.Config{}, ErrUnparsedArgs
	}

	v := viper.New()
	if err := v.BindPFlags(fs); err != nil {
		return roomcast.Config{}, fmt.Errorf("failed to bind flags: %w", err)
	}
	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return roomcast.Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	debug := v.GetBool("debug")
	return roomcast.Config{
		Display: v.GetString("display"),
		Debug:   debug,
		Signal: signal.Config{
			URL:              v.GetString("gateway"),
			Subprotocol:      signal.DefaultSubprotocol,
			HandshakeTimeout: signal.DefaultHandshakeTimeout,
		},
		Media: media.Config{
			ICEServers: v.GetStringSlice("stun"),
			MinUDPPort: v.GetInt("min-port"),
			MaxUDPPort: v.GetInt("max-port"),
		},
		Coordinator: coordinator.Config{
			RoomID:          v.GetUint64("room"),
			Secret:          v.GetString("secret"),
			Description:     v.GetString("description"),
			Publishers:      coordinator.DefaultPublishers,
			Bitrate:         v.GetInt("bitrate"),
			Record:          v.GetBool("record"),
			KeepAlivePeriod: v.GetDuration("keepalive"),
		},
		Metrics: metric.Config{
			Namespace:      metric.DefaultNamespace,
			UpdateInterval: metric.DefaultUpdateInterval,
		},
		API: api.Config{
			Port:  v.GetInt("api-port"),
			Debug: debug,
		},
	}, nil
}
