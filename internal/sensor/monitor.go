package sensor

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"syscall"

	"github.com/pilebones/go-udev/netlink"
	"github.com/rs/zerolog/log"
)

// netlinkBufferSize is the receive buffer size for the netlink socket.
// Device hot-plug generates bursts of netlink messages; a larger buffer
// prevents ENOBUFS errors while the daemon is busy.
const netlinkBufferSize = 2 * 1024 * 1024 // 2 MB

// EventType represents the type of sensor hot-plug event.
type EventType int

const (
	// EventAdd indicates an IIO device appeared.
	EventAdd EventType = iota
	// EventRemove indicates an IIO device went away.
	EventRemove
)

// Event represents an IIO device hot-plug event.
type Event struct {
	Type    EventType
	DevPath string
}

// EventHandler is called when a sensor hot-plug event occurs.
type EventHandler func(event Event)

// RecoveryHandler is called when the monitor recovers from a netlink
// buffer overflow and events may have been dropped; it should re-discover
// the sensor from sysfs.
type RecoveryHandler func()

// Monitor watches for IIO device connect/disconnect events.
type Monitor struct {
	conn            *netlink.UEventConn
	handler         EventHandler
	recoveryHandler RecoveryHandler
	quit            chan struct{}
	stopped         bool
	mu              sync.Mutex
}

// NewMonitor creates a hot-plug monitor with the given event handler.
func NewMonitor(handler EventHandler) *Monitor {
	return &Monitor{handler: handler}
}

// SetRecoveryHandler sets the handler called after missed-event recovery.
func (m *Monitor) SetRecoveryHandler(handler RecoveryHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recoveryHandler = handler
}

// Start begins monitoring for IIO device events. Non-blocking; events are
// processed in a background goroutine.
func (m *Monitor) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn != nil {
		return fmt.Errorf("monitor already started")
	}

	m.conn = &netlink.UEventConn{}
	if err := m.conn.Connect(netlink.UdevEvent); err != nil {
		m.conn = nil
		return fmt.Errorf("failed to connect to netlink: %w", err)
	}

	if err := setSocketBufferSize(m.conn.Fd, netlinkBufferSize); err != nil {
		log.Warn().Err(err).Int("size", netlinkBufferSize).Msg("Failed to set netlink buffer size")
	} else {
		log.Debug().Int("size", netlinkBufferSize).Msg("Netlink socket buffer size configured")
	}

	queue := make(chan netlink.UEvent)
	errs := make(chan error)

	m.quit = m.conn.Monitor(queue, errs, iioMatcher())
	m.stopped = false

	go m.processEvents(queue, errs)

	log.Info().Msg("IIO hot-plug monitor started")
	return nil
}

// Stop stops the monitor and releases resources.
func (m *Monitor) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn == nil || m.stopped {
		return nil
	}

	m.stopped = true

	select {
	case m.quit <- struct{}{}:
	default:
	}

	if err := m.conn.Close(); err != nil {
		return fmt.Errorf("failed to close netlink connection: %w", err)
	}

	m.conn = nil
	log.Info().Msg("IIO hot-plug monitor stopped")
	return nil
}

// iioMatcher matches add/remove events for the IIO subsystem.
func iioMatcher() *netlink.RuleDefinitions {
	rules := &netlink.RuleDefinitions{}

	addAction := "add"
	removeAction := "remove"

	rules.AddRule(netlink.RuleDefinition{
		Action: &addAction,
		Env:    map[string]string{"SUBSYSTEM": "^iio$"},
	})
	rules.AddRule(netlink.RuleDefinition{
		Action: &removeAction,
		Env:    map[string]string{"SUBSYSTEM": "^iio$"},
	})

	return rules
}

func (m *Monitor) processEvents(queue chan netlink.UEvent, errs chan error) {
	for {
		select {
		case event, ok := <-queue:
			if !ok {
				return
			}
			m.handleEvent(event)
		case err, ok := <-errs:
			if !ok {
				return
			}
			m.mu.Lock()
			stopped := m.stopped
			recoveryHandler := m.recoveryHandler
			m.mu.Unlock()
			if stopped {
				return
			}

			// On buffer overflow events may have been dropped; let the
			// recovery handler re-scan sysfs instead of trusting the
			// event stream.
			if isBufferOverflowError(err) {
				log.Warn().Msg("Netlink buffer overflow detected, triggering sensor rescan")
				if recoveryHandler != nil {
					go recoveryHandler()
				}
				continue
			}

			log.Error().Err(err).Msg("IIO hot-plug monitor error")
		}
	}
}

func (m *Monitor) handleEvent(uevent netlink.UEvent) {
	log.Debug().
		Str("action", string(uevent.Action)).
		Str("devpath", uevent.KObj).
		Msg("IIO device event")

	var eventType EventType
	switch uevent.Action {
	case netlink.ADD:
		eventType = EventAdd
		log.Info().Str("devpath", uevent.KObj).Msg("IIO device connected")
	case netlink.REMOVE:
		eventType = EventRemove
		log.Info().Str("devpath", uevent.KObj).Msg("IIO device disconnected")
	default:
		return
	}

	if m.handler != nil {
		m.handler(Event{Type: eventType, DevPath: uevent.KObj})
	}
}

// setSocketBufferSize sets the receive buffer size for a socket. It tries
// SO_RCVBUFFORCE first (requires CAP_NET_ADMIN), then falls back to
// SO_RCVBUF, which the kernel caps at net.core.rmem_max.
func setSocketBufferSize(fd int, size int) error {
	err := syscall.SetsockoptInt(fd, syscall.SOL_SOCKET, syscall.SO_RCVBUFFORCE, size)
	if err == nil {
		return nil
	}
	return syscall.SetsockoptInt(fd, syscall.SOL_SOCKET, syscall.SO_RCVBUF, size)
}

// isBufferOverflowError checks if the error is a netlink buffer overflow.
func isBufferOverflowError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, syscall.ENOBUFS) {
		return true
	}
	// The udev library does not always wrap the errno.
	return strings.Contains(strings.ToLower(err.Error()), "no buffer space available")
}
