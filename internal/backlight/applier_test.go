package backlight_test

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/hdrclamp/hdrclampd/internal/backlight"
	"github.com/hdrclamp/hdrclampd/internal/backlight/mocks"
	"github.com/hdrclamp/hdrclampd/internal/clamp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// stepScheduler runs posts inline and records delayed posts so tests can
// drive ramp steps one at a time.
type stepScheduler struct {
	timers []*stepTimer
}

type stepTimer struct {
	delay     time.Duration
	fn        func()
	cancelled bool
}

func (t *stepTimer) Cancel() bool {
	if t.cancelled {
		return false
	}
	t.cancelled = true
	return true
}

func (s *stepScheduler) Post(fn func()) { fn() }

func (s *stepScheduler) PostDelayed(d time.Duration, fn func()) clamp.Cancellable {
	t := &stepTimer{delay: d, fn: fn}
	s.timers = append(s.timers, t)
	return t
}

func (s *stepScheduler) firePending(t *testing.T) {
	t.Helper()
	for _, timer := range s.timers {
		if !timer.cancelled && timer.fn != nil {
			fn := timer.fn
			timer.fn = nil
			fn()
			return
		}
	}
	t.Fatal("no pending step timer")
}

func (s *stepScheduler) pendingCount() int {
	n := 0
	for _, timer := range s.timers {
		if !timer.cancelled && timer.fn != nil {
			n++
		}
	}
	return n
}

// newApplierFixture builds an applier over a mock device reporting full
// brightness, recording every level written to the hardware.
func newApplierFixture(t *testing.T) (*backlight.Applier, *stepScheduler, *[]float64) {
	t.Helper()
	ctrl := gomock.NewController(t)
	mockDevice := mocks.NewMockDevice(ctrl)

	mockDevice.EXPECT().GetFeatureReport(gomock.Any()).DoAndReturn(func(data []byte) (int, error) {
		binary.LittleEndian.PutUint32(data[1:5], testRange.MaxNits)
		return backlight.ReportSize, nil
	})

	written := &[]float64{}
	mockDevice.EXPECT().SendFeatureReport(gomock.Any()).DoAndReturn(func(data []byte) (int, error) {
		nits := binary.LittleEndian.Uint32(data[1:5])
		*written = append(*written, testRange.NitsToLevel(nits))
		return backlight.ReportSize, nil
	}).AnyTimes()

	sched := &stepScheduler{}
	dev := backlight.NewBacklight(mockDevice, testRange)
	return backlight.NewApplier(sched, dev, 100*time.Millisecond), sched, written
}

func TestApplier_SeedsFromHardware(t *testing.T) {
	a, _, _ := newApplierFixture(t)
	assert.Equal(t, 1.0, a.UserLevel())
	assert.Equal(t, 1.0, a.Applied())
}

func TestApplier_UnsetRateJumpsImmediately(t *testing.T) {
	a, sched, written := newApplierFixture(t)

	a.OnClampChanged(0.5, clamp.RateUnset)
	assert.Equal(t, 0.5, a.Applied())
	require.Len(t, *written, 1)
	assert.InDelta(t, 0.5, (*written)[0], 0.001)
	assert.Zero(t, sched.pendingCount())
}

func TestApplier_RampsAtTransitionRate(t *testing.T) {
	a, sched, written := newApplierFixture(t)

	// 1.0 units/second with 100ms steps moves 0.1 per step.
	a.OnClampChanged(0.7, 1.0)
	assert.InDelta(t, 0.9, a.Applied(), 1e-9)
	require.Equal(t, 1, sched.pendingCount())

	sched.firePending(t)
	assert.InDelta(t, 0.8, a.Applied(), 1e-9)

	sched.firePending(t)
	assert.InDelta(t, 0.7, a.Applied(), 1e-9)
	// Target reached: no further step is armed.
	assert.Zero(t, sched.pendingCount())
	assert.Len(t, *written, 3)
}

func TestApplier_RetargetCancelsRamp(t *testing.T) {
	a, sched, _ := newApplierFixture(t)

	a.OnClampChanged(0.5, 1.0)
	require.Equal(t, 1, sched.pendingCount())
	require.InDelta(t, 0.9, a.Applied(), 1e-9)

	// Clamp lifted mid-ramp: the old ramp is cancelled and a new one
	// starts toward the new target at the new rate.
	a.OnClampChanged(1.0, 0.5)
	assert.Equal(t, 1, sched.pendingCount())
	assert.InDelta(t, 0.95, a.Applied(), 1e-9)

	sched.firePending(t)
	assert.InDelta(t, 1.0, a.Applied(), 1e-9)
	assert.Zero(t, sched.pendingCount())
}

func TestApplier_UserLevelBoundedByCeiling(t *testing.T) {
	a, _, _ := newApplierFixture(t)

	a.OnClampChanged(0.5, clamp.RateUnset)
	require.Equal(t, 0.5, a.Applied())

	// Raising the setpoint above the ceiling must not raise the output.
	require.NoError(t, a.SetUserLevel(0.9))
	assert.Equal(t, 0.5, a.Applied())
	assert.Equal(t, 0.9, a.UserLevel())

	// Lowering below the ceiling takes effect directly.
	require.NoError(t, a.SetUserLevel(0.3))
	assert.Equal(t, 0.3, a.Applied())
}

func TestApplier_SetUserLevel_Invalid(t *testing.T) {
	a, _, _ := newApplierFixture(t)
	assert.ErrorIs(t, a.SetUserLevel(1.5), backlight.ErrInvalidLevel)
	assert.ErrorIs(t, a.SetUserLevel(-0.1), backlight.ErrInvalidLevel)
}

func TestApplier_Stop(t *testing.T) {
	a, sched, _ := newApplierFixture(t)

	a.OnClampChanged(0.5, 1.0)
	require.Equal(t, 1, sched.pendingCount())

	a.Stop()
	assert.Zero(t, sched.pendingCount())

	// Terminal: later clamp changes are ignored.
	a.OnClampChanged(0.2, clamp.RateUnset)
	assert.InDelta(t, 0.9, a.Applied(), 1e-9)
}
