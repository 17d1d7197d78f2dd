package dbusapi

import (
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hdrclamp/hdrclampd/internal/clamp"
)

func validBody() []interface{} {
	return []interface{}{"display-0", int32(2), int32(1920), int32(1080), int32(0), 4.0}
}

func TestParseLayerInfo(t *testing.T) {
	token, count, w, h, flags, ratio, err := parseLayerInfo(validBody())
	require.NoError(t, err)
	assert.Equal(t, "display-0", token)
	assert.Equal(t, 2, count)
	assert.Equal(t, 1920, w)
	assert.Equal(t, 1080, h)
	assert.Equal(t, 0, flags)
	assert.Equal(t, 4.0, ratio)
}

func TestParseLayerInfo_Malformed(t *testing.T) {
	tests := []struct {
		name string
		body []interface{}
	}{
		{
			name: "too few fields",
			body: []interface{}{"display-0", int32(1)},
		},
		{
			name: "token not a string",
			body: func() []interface{} {
				b := validBody()
				b[0] = int32(7)
				return b
			}(),
		},
		{
			name: "layer count not an int32",
			body: func() []interface{} {
				b := validBody()
				b[1] = "two"
				return b
			}(),
		},
		{
			name: "ratio not a float",
			body: func() []interface{} {
				b := validBody()
				b[5] = int32(4)
				return b
			}(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, _, _, _, _, err := parseLayerInfo(tt.body)
			assert.Error(t, err)
		})
	}
}

// recordingObserver collects layer-info callbacks.
type recordingObserver struct {
	events [][2]int // layerCount, area
}

func (r *recordingObserver) OnLayerInfoChanged(_ string, layerCount, maxWidth, maxHeight, _ int, _ float64) {
	r.events = append(r.events, [2]int{layerCount, maxWidth * maxHeight})
}

func TestLayerInfoClient_DispatchRoutesByToken(t *testing.T) {
	c := NewLayerInfoClient(nil)
	observer := &recordingObserver{}
	c.observers["display-0"] = observer

	signals := make(chan *dbus.Signal, 3)
	signals <- &dbus.Signal{
		Name: CompositorInterface + "." + LayerInfoSignal,
		Body: validBody(),
	}
	// Unknown token and unrelated signal are both ignored.
	signals <- &dbus.Signal{
		Name: CompositorInterface + "." + LayerInfoSignal,
		Body: []interface{}{"display-9", int32(1), int32(100), int32(100), int32(0), 1.0},
	}
	signals <- &dbus.Signal{Name: "org.freedesktop.DBus.NameAcquired"}
	close(signals)

	c.dispatch(signals)

	require.Len(t, observer.events, 1)
	assert.Equal(t, [2]int{2, 1920 * 1080}, observer.events[0])
}

func TestLayerInfoClient_ImplementsSource(t *testing.T) {
	var _ clamp.LayerInfoSource = NewLayerInfoClient(nil)
}
