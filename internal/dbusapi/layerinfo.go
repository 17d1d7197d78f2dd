package dbusapi

import (
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/rs/zerolog/log"

	"github.com/hdrclamp/hdrclampd/internal/clamp"
)

const (
	// CompositorInterface is the D-Bus interface compositors use to
	// publish HDR layer info per display.
	CompositorInterface = "io.github.hdrclamp.Compositor"

	// LayerInfoSignal is the member name of the layer-info signal.
	// Body: (s token, i layerCount, i maxWidth, i maxHeight, i flags,
	// d maxDesiredRatio).
	LayerInfoSignal = "HdrLayerInfoChanged"
)

// LayerInfoClient subscribes to compositor HDR layer-info signals and
// implements clamp.LayerInfoSource. One client serves any number of
// display tokens; each token carries at most one observer.
type LayerInfoClient struct {
	conn    *dbus.Conn
	ownConn bool

	mu        sync.Mutex
	observers map[string]clamp.LayerInfoObserver
	signals   chan *dbus.Signal
}

// Verify LayerInfoClient implements the source interface.
var _ clamp.LayerInfoSource = (*LayerInfoClient)(nil)

// NewLayerInfoClient creates a client over an established bus connection.
func NewLayerInfoClient(conn *dbus.Conn) *LayerInfoClient {
	return &LayerInfoClient{
		conn:      conn,
		observers: make(map[string]clamp.LayerInfoObserver),
	}
}

// ConnectLayerInfo creates a client with its own session bus connection,
// closed together with the client.
func ConnectLayerInfo() (*LayerInfoClient, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}
	c := NewLayerInfoClient(conn)
	c.ownConn = true
	return c, nil
}

// Register subscribes the observer to layer-info signals for the display
// token. A match-rule failure is a setup-time error surfaced to the caller.
func (c *LayerInfoClient) Register(token string, observer clamp.LayerInfoObserver) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.observers[token]; ok {
		return fmt.Errorf("token %s already registered", token)
	}

	if err := c.conn.AddMatchSignal(
		dbus.WithMatchInterface(CompositorInterface),
		dbus.WithMatchMember(LayerInfoSignal),
		dbus.WithMatchArg(0, token),
	); err != nil {
		return fmt.Errorf("failed to add layer-info match for %s: %w", token, err)
	}

	c.observers[token] = observer

	if c.signals == nil {
		c.signals = make(chan *dbus.Signal, 16)
		c.conn.Signal(c.signals)
		go c.dispatch(c.signals)
	}
	return nil
}

// Unregister drops the subscription for the display token.
func (c *LayerInfoClient) Unregister(token string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.observers[token]; !ok {
		return nil
	}
	delete(c.observers, token)

	if err := c.conn.RemoveMatchSignal(
		dbus.WithMatchInterface(CompositorInterface),
		dbus.WithMatchMember(LayerInfoSignal),
		dbus.WithMatchArg(0, token),
	); err != nil {
		return fmt.Errorf("failed to remove layer-info match for %s: %w", token, err)
	}
	return nil
}

// Close detaches the signal channel from the connection. The connection
// itself belongs to the caller.
func (c *LayerInfoClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.signals != nil {
		c.conn.RemoveSignal(c.signals)
		close(c.signals)
		c.signals = nil
	}
	c.observers = make(map[string]clamp.LayerInfoObserver)

	if c.ownConn {
		if err := c.conn.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close session bus connection")
		}
	}
}

func (c *LayerInfoClient) dispatch(signals chan *dbus.Signal) {
	for sig := range signals {
		if sig.Name != CompositorInterface+"."+LayerInfoSignal {
			continue
		}
		token, layerCount, maxW, maxH, flags, ratio, err := parseLayerInfo(sig.Body)
		if err != nil {
			log.Warn().Err(err).Msg("Malformed HDR layer-info signal")
			continue
		}

		c.mu.Lock()
		observer := c.observers[token]
		c.mu.Unlock()
		if observer == nil {
			continue
		}
		observer.OnLayerInfoChanged(token, layerCount, maxW, maxH, flags, ratio)
	}
}

func parseLayerInfo(body []interface{}) (token string, layerCount, maxW, maxH, flags int, ratio float64, err error) {
	if len(body) != 6 {
		return "", 0, 0, 0, 0, 0, fmt.Errorf("expected 6 fields, got %d", len(body))
	}

	token, ok := body[0].(string)
	if !ok {
		return "", 0, 0, 0, 0, 0, fmt.Errorf("token is %T, not string", body[0])
	}

	ints := make([]int, 4)
	for i := 1; i <= 4; i++ {
		v, ok := body[i].(int32)
		if !ok {
			return "", 0, 0, 0, 0, 0, fmt.Errorf("field %d is %T, not int32", i, body[i])
		}
		ints[i-1] = int(v)
	}

	ratio, ok = body[5].(float64)
	if !ok {
		return "", 0, 0, 0, 0, 0, fmt.Errorf("ratio is %T, not float64", body[5])
	}

	return token, ints[0], ints[1], ints[2], ints[3], ratio, nil
}
