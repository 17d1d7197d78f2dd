// Package main provides the entry point for the hdrclampd HDR brightness daemon.
package main

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/hdrclamp/hdrclampd/internal/backlight"
	"github.com/hdrclamp/hdrclampd/internal/clamp"
	"github.com/hdrclamp/hdrclampd/internal/config"
	"github.com/hdrclamp/hdrclampd/internal/dbusapi"
	"github.com/hdrclamp/hdrclampd/internal/eventloop"
	"github.com/hdrclamp/hdrclampd/internal/sensor"
)

var (
	configPath string
	verbose    bool
	rootCmd    = &cobra.Command{
		Use:   "hdrclampd",
		Short: "D-Bus daemon that bounds display brightness while HDR content is visible",
		Long: `hdrclampd caps display brightness while HDR content is on screen.

It subscribes to the compositor's HDR layer-info signals, tracks the
ambient light sensor and debounces transitions between brightness
ceilings before committing them. Committed ceilings are ramped onto the
backlight over USB HID and announced over D-Bus.`,
		Run: func(cmd *cobra.Command, args []string) {
			run()
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "/etc/hdrclampd/config.yaml", "Path to configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
}

func setupLogging(cfg config.LogConfig) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level := zerolog.InfoLevel
	if parsed, err := zerolog.ParseLevel(cfg.Level); err == nil && cfg.Level != "" {
		level = parsed
	}
	if verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	if verbose || cfg.Colors {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

func run() {
	cfg, err := config.Load(configPath)
	if err != nil {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
		log.Fatal().Err(err).Str("path", configPath).Msg("Failed to load configuration")
	}
	setupLogging(cfg.Log)

	log.Info().Msg("Starting hdrclampd")

	loop := eventloop.New()
	sched := clamp.NewLoopScheduler(loop)

	// Backlight hardware is optional: without it the daemon still tracks
	// and announces ceilings, and a compositor-side consumer can apply them.
	var (
		device  *backlight.HIDAPIDevice
		applier *backlight.Applier
	)
	if cfg.Backlight.Enabled {
		device, err = backlight.Open(cfg.Backlight.VendorID, cfg.Backlight.ProductID, cfg.Backlight.Interface, cfg.Backlight.Serial)
		if err != nil {
			log.Warn().Err(err).Msg("Backlight device unavailable, continuing without hardware control")
		} else {
			bl := backlight.NewBacklight(device, backlight.Range{
				MinNits: cfg.Backlight.MinNits,
				MaxNits: cfg.Backlight.MaxNits,
			})
			applier = backlight.NewApplier(sched, bl, cfg.Backlight.StepInterval.Duration())
			log.Info().Str("serial", bl.Serial()).Msg("Backlight device opened")
		}
	}

	layerInfo, err := dbusapi.ConnectLayerInfo()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to session bus")
	}

	var (
		clamper *clamp.Clamper
		server  *dbusapi.Server
	)
	clamper = clamp.New(sched, layerInfo, func() {
		ceiling := clamper.MaxBrightness()
		rampRate := clamper.TransitionRate()
		if applier != nil {
			applier.OnClampChanged(ceiling, rampRate)
		}
		server.EmitClampChanged(ceiling, rampRate)
	})

	server = dbusapi.NewServer(&controller{loop: loop, clamper: clamper, applier: applier})
	if err := server.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start D-Bus server")
	}

	var cfgErr error
	loop.Call(func() {
		cfgErr = clamper.ResetConfig(cfg.Clamp.ToClamp(), cfg.Display.Width, cfg.Display.Height, cfg.Display.MinHdrFraction, cfg.Display.Token)
	})
	if cfgErr != nil {
		log.Fatal().Err(cfgErr).Msg("Invalid clamp configuration")
	}

	// Ambient light sensor. Missing hardware is not fatal: without lux
	// readings the clamper behaves as if the room were maximally bright
	// and never lowers the ceiling.
	sensorDir := cfg.Sensor.Device
	if sensorDir == "" {
		sensorDir, err = sensor.Discover(sensor.DefaultSysfsRoot)
		if err != nil {
			log.Warn().Err(err).Msg("No ambient light sensor found")
			sensorDir = ""
		}
	}

	var poller *sensor.Poller
	if sensorDir != "" {
		poller = sensor.NewPoller(sensorDir, cfg.Sensor.PollInterval.Duration(), func(lux float64) {
			loop.Post(func() {
				clamper.OnAmbientLuxChange(lux)
			})
		})
		if err := poller.Start(); err != nil {
			log.Error().Err(err).Str("device", sensorDir).Msg("Failed to start sensor poller")
			poller = nil
		} else {
			log.Info().Str("device", sensorDir).Msg("Ambient light sensor polling started")
		}
	}

	// Hot-plug detection keeps the poller pointed at a live device when
	// the sensor disappears or (re)appears.
	monitor := sensor.NewMonitor(createHotplugHandler(poller))
	monitor.SetRecoveryHandler(createRecoveryHandler(poller))
	if err := monitor.Start(); err != nil {
		log.Error().Err(err).Msg("Failed to start udev monitor (hot-plug detection disabled)")
	}

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	log.Info().Msg("Daemon running, press Ctrl+C to stop")
	<-sigChan

	// Cleanup
	log.Info().Msg("Shutting down...")
	if err := monitor.Stop(); err != nil {
		log.Error().Err(err).Msg("Failed to stop udev monitor")
	}
	if poller != nil {
		poller.Stop()
	}
	loop.Call(func() {
		clamper.Stop()
		if applier != nil {
			applier.Stop()
		}
	})
	if err := server.Stop(); err != nil {
		log.Error().Err(err).Msg("Failed to stop D-Bus server")
	}
	layerInfo.Close()
	if device != nil {
		if err := device.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close backlight device")
		}
	}
	loop.Stop()

	log.Info().Msg("Daemon stopped")
}

// refreshMu serializes sensor re-discovery between the hotplug handler and
// the netlink overflow recovery handler.
var refreshMu sync.Mutex

// rediscoverWithRetry attempts to locate an illuminance device with linear
// backoff. It retries up to maxRetries times with increasing delays.
func rediscoverWithRetry(maxRetries int) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			// Linear backoff: 500ms, 1000ms, 1500ms, ...
			backoff := time.Duration(attempt) * 500 * time.Millisecond
			log.Debug().
				Int("attempt", attempt).
				Dur("backoff", backoff).
				Msg("Retrying sensor discovery")
			time.Sleep(backoff)
		}

		dir, err := sensor.Discover(sensor.DefaultSysfsRoot)
		if err != nil {
			lastErr = err
			continue
		}

		if attempt > 0 {
			log.Info().Int("attempts", attempt+1).Msg("Sensor discovery succeeded after retry")
		}
		return dir, nil
	}
	return "", lastErr
}

// createHotplugHandler returns an event handler that re-discovers the ambient
// light sensor and retargets the poller after IIO add/remove events.
func createHotplugHandler(poller *sensor.Poller) sensor.EventHandler {
	return func(event sensor.Event) {
		if poller == nil {
			return
		}

		// Use shared mutex to serialize with recovery handler
		refreshMu.Lock()
		defer refreshMu.Unlock()

		// For add events, wait for sysfs attributes to appear. Remove
		// events don't need this delay as the device is already gone.
		if event.Type == sensor.EventAdd {
			time.Sleep(500 * time.Millisecond)
		}

		dir, err := rediscoverWithRetry(3)
		if err != nil {
			log.Warn().Err(err).Str("devpath", event.DevPath).Msg("No usable sensor after hot-plug event")
			return
		}

		log.Info().Str("device", dir).Msg("Retargeting sensor poller after hot-plug event")
		poller.SetDevice(dir)
	}
}

// createRecoveryHandler returns a handler for netlink buffer overflow
// recovery. It re-discovers the sensor to compensate for missed udev events.
func createRecoveryHandler(poller *sensor.Poller) sensor.RecoveryHandler {
	return func() {
		if poller == nil {
			return
		}

		// Use shared mutex to serialize with hotplug handler
		refreshMu.Lock()
		defer refreshMu.Unlock()

		log.Info().Msg("Performing sensor re-discovery after netlink buffer overflow")

		// Wait a moment for any pending device operations to settle
		time.Sleep(500 * time.Millisecond)

		dir, err := rediscoverWithRetry(3)
		if err != nil {
			log.Error().Err(err).Msg("Recovery re-discovery failed (all retries exhausted)")
			return
		}

		poller.SetDevice(dir)
		log.Info().Str("device", dir).Msg("Recovery re-discovery completed")
	}
}

// controller marshals D-Bus calls onto the event loop that owns the clamp
// and applier state.
type controller struct {
	loop    *eventloop.Loop
	clamper *clamp.Clamper
	applier *backlight.Applier
}

var _ dbusapi.Controller = (*controller)(nil)

func (c *controller) MaxBrightness() float64 {
	var v float64
	c.loop.Call(func() { v = c.clamper.MaxBrightness() })
	return v
}

func (c *controller) TransitionRate() float64 {
	var v float64
	c.loop.Call(func() { v = c.clamper.TransitionRate() })
	return v
}

func (c *controller) SetUserBrightness(level float64) error {
	if c.applier == nil {
		return backlight.ErrNoDevice
	}
	var err error
	c.loop.Call(func() { err = c.applier.SetUserLevel(level) })
	return err
}

func (c *controller) Status() dbusapi.ClampStatus {
	var st clamp.Status
	c.loop.Call(func() { st = c.clamper.Snapshot() })
	return dbusapi.ClampStatus{
		MaxBrightness:         st.MaxBrightness,
		DesiredMaxBrightness:  st.DesiredMaxBrightness,
		TransitionRate:        st.TransitionRate,
		DesiredTransitionRate: st.DesiredTransitionRate,
		AmbientLux:            st.AmbientLux,
		HdrVisible:            st.HdrVisible,
		ConfigPresent:         st.ConfigPresent,
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("Failed to execute command")
	}
}
