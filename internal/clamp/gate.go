package clamp

import "math"

//go:generate mockgen -source=gate.go -destination=mocks/gate_mock.go -package=mocks

// LayerInfoObserver receives raw HDR layer-info events from a compositor
// subscription. Implementations may be invoked on any goroutine; the
// observer is responsible for marshalling onto its owner's scheduler.
type LayerInfoObserver interface {
	// OnLayerInfoChanged reports the HDR layer population of a display:
	// the number of visible HDR layers, the size of the largest one, the
	// compositor's flag bits and the maximum desired HDR/SDR ratio. The
	// clamper only consumes the layer count and size.
	OnLayerInfoChanged(token string, layerCount, maxWidth, maxHeight, flags int, maxDesiredRatio float64)
}

// LayerInfoSource is a capability for subscribing to per-display HDR
// layer-info events. A failed Register is a setup-time collaborator
// failure; the clamper propagates it and does not retry.
type LayerInfoSource interface {
	Register(token string, observer LayerInfoObserver) error
	Unregister(token string) error
}

// noPixelThreshold disables the gate: with no positive threshold the
// listener is never registered (virtual displays report no HDR info).
const noPixelThreshold = -1.0

// gateListener turns raw layer-info events into a boolean gate: HDR
// content is visible and covers at least minPixels. minPixels is read and
// written on the scheduler goroutine only; the raw event is marshalled
// before the threshold comparison, mirroring how config updates and gate
// evaluation are serialized.
type gateListener struct {
	sched     Scheduler
	onVisible func(bool)
	minPixels float64
}

func newGateListener(sched Scheduler, onVisible func(bool)) *gateListener {
	return &gateListener{
		sched:     sched,
		onVisible: onVisible,
		// Until a threshold is configured no HDR layer counts as visible.
		minPixels: math.MaxFloat64,
	}
}

func (g *gateListener) OnLayerInfoChanged(_ string, layerCount, maxWidth, maxHeight, _ int, _ float64) {
	g.sched.Post(func() {
		g.onVisible(layerCount > 0 && float64(maxWidth*maxHeight) >= g.minPixels)
	})
}
