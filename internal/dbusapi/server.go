// Package dbusapi provides the D-Bus surface of hdrclampd: a service
// exposing the clamp state to consumers, and a client subscribing to the
// compositor's HDR layer-info signals.
package dbusapi

import (
	"errors"
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// ErrRateLimitExceeded is returned when brightness change requests exceed
// the rate limit.
var ErrRateLimitExceeded = errors.New("rate limit exceeded")

const (
	// rateLimitPerSecond is the maximum number of brightness changes per second.
	rateLimitPerSecond = 20

	// rateLimitBurst is the maximum burst size for brightness changes.
	rateLimitBurst = 5
)

const (
	// ServiceName is the D-Bus service name.
	ServiceName = "io.github.hdrclamp.Clampd"

	// ObjectPath is the D-Bus object path.
	ObjectPath = "/io/github/hdrclamp/Clampd"

	// InterfaceName is the D-Bus interface name.
	InterfaceName = "io.github.hdrclamp.Clampd"
)

// IntrospectXML is the D-Bus introspection XML for the service.
const IntrospectXML = `
<node name="` + ObjectPath + `">
  <interface name="` + InterfaceName + `">
    <method name="GetMaxBrightness">
      <arg name="maxBrightness" type="d" direction="out"/>
    </method>
    <method name="GetTransitionRate">
      <arg name="rate" type="d" direction="out"/>
    </method>
    <method name="GetAmbientLux">
      <arg name="lux" type="d" direction="out"/>
    </method>
    <method name="SetBrightness">
      <arg name="level" type="d" direction="in"/>
    </method>
    <method name="GetStatus">
      <arg name="status" type="(dddddbb)" direction="out"/>
    </method>
    <signal name="ClampChanged">
      <arg name="maxBrightness" type="d"/>
      <arg name="rate" type="d"/>
    </signal>
  </interface>
  ` + introspect.IntrospectDataString + `
</node>
`

// ClampStatus is the diagnostic snapshot returned via D-Bus.
// Serializes to D-Bus type (dddddbb).
type ClampStatus struct {
	MaxBrightness         float64
	DesiredMaxBrightness  float64
	TransitionRate        float64
	DesiredTransitionRate float64
	AmbientLux            float64
	HdrVisible            bool
	ConfigPresent         bool
}

// Controller is the daemon-side surface the server exposes. The
// implementation is responsible for marshalling calls onto the goroutine
// that owns the clamp state.
type Controller interface {
	// MaxBrightness returns the committed brightness ceiling.
	MaxBrightness() float64

	// TransitionRate returns the committed ramp rate.
	TransitionRate() float64

	// SetUserBrightness updates the user's brightness setpoint.
	SetUserBrightness(level float64) error

	// Status returns a diagnostic snapshot.
	Status() ClampStatus
}

// Server implements the D-Bus service for the clamp daemon.
//
// Thread safety: the connMu mutex protects the connection field for signal
// emission; the Controller implementation serializes state access itself.
type Server struct {
	conn        *dbus.Conn
	connMu      sync.RWMutex // Protects conn field only
	controller  Controller
	rateLimiter *rate.Limiter
}

// NewServer creates a D-Bus server for the given controller.
func NewServer(controller Controller) *Server {
	return &Server{
		controller:  controller,
		rateLimiter: rate.NewLimiter(rateLimitPerSecond, rateLimitBurst),
	}
}

// Start connects to the session bus and exports the service.
func (s *Server) Start() error {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return fmt.Errorf("failed to connect to session bus: %w", err)
	}

	// Ensure connection is closed if setup fails
	success := false
	defer func() {
		if !success {
			if closeErr := conn.Close(); closeErr != nil {
				log.Error().Err(closeErr).Msg("Failed to close D-Bus connection during cleanup")
			}
		}
	}()

	if err := conn.Export(s, ObjectPath, InterfaceName); err != nil {
		return fmt.Errorf("failed to export server: %w", err)
	}

	if err := conn.Export(introspect.Introspectable(IntrospectXML), ObjectPath,
		"org.freedesktop.DBus.Introspectable"); err != nil {
		return fmt.Errorf("failed to export introspectable: %w", err)
	}

	reply, err := conn.RequestName(ServiceName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return fmt.Errorf("failed to request name: %w", err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return fmt.Errorf("name %s already taken", ServiceName)
	}

	s.connMu.Lock()
	s.conn = conn
	s.connMu.Unlock()

	success = true
	log.Info().Str("service", ServiceName).Msg("D-Bus service started")
	return nil
}

// Stop disconnects from the session bus.
func (s *Server) Stop() error {
	s.connMu.Lock()
	conn := s.conn
	s.conn = nil
	s.connMu.Unlock()

	if conn != nil {
		return conn.Close()
	}
	return nil
}

// GetMaxBrightness returns the committed brightness ceiling (0.0-1.0).
func (s *Server) GetMaxBrightness() (float64, *dbus.Error) {
	max := s.controller.MaxBrightness()
	log.Debug().Float64("maxBrightness", max).Msg("Got max brightness")
	return max, nil
}

// GetTransitionRate returns the committed ramp rate in units per second,
// or -1 when no explicit rate applies.
func (s *Server) GetTransitionRate() (float64, *dbus.Error) {
	return s.controller.TransitionRate(), nil
}

// GetAmbientLux returns the last ambient light reading in lux.
func (s *Server) GetAmbientLux() (float64, *dbus.Error) {
	return s.controller.Status().AmbientLux, nil
}

// SetBrightness sets the user brightness setpoint (0.0-1.0). The effective
// output stays bounded by the HDR clamp ceiling.
func (s *Server) SetBrightness(level float64) *dbus.Error {
	if !s.rateLimiter.Allow() {
		log.Warn().Msg("Rate limit exceeded for SetBrightness")
		return dbus.MakeFailedError(ErrRateLimitExceeded)
	}

	if err := s.controller.SetUserBrightness(level); err != nil {
		log.Error().Err(err).Float64("level", level).Msg("Failed to set brightness")
		return dbus.MakeFailedError(err)
	}

	log.Debug().Float64("level", level).Msg("Set brightness")
	return nil
}

// GetStatus returns a diagnostic snapshot of the clamp state.
func (s *Server) GetStatus() (ClampStatus, *dbus.Error) {
	return s.controller.Status(), nil
}

// EmitClampChanged emits the ClampChanged signal.
func (s *Server) EmitClampChanged(maxBrightness, transitionRate float64) {
	s.connMu.RLock()
	conn := s.conn
	s.connMu.RUnlock()

	if conn == nil {
		return
	}

	err := conn.Emit(ObjectPath, InterfaceName+".ClampChanged", maxBrightness, transitionRate)
	if err != nil {
		log.Error().Err(err).Msg("Failed to emit ClampChanged signal")
	}
}
