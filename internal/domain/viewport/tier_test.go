package viewport

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify_Boundaries(t *testing.T) {
	tests := []struct {
		width int
		want  DeviceTier
	}{
		{0, TierMobile},
		{320, TierMobile},
		{639, TierMobile},
		{640, TierMobile},
		{767, TierMobile},
		{768, TierTablet},
		{1023, TierTablet},
		{1024, TierLaptop},
		{1279, TierLaptop},
		{1280, TierDesktop},
		{2560, TierDesktop},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.width), "width=%d", tt.width)
	}
}

func TestIsMobile(t *testing.T) {
	assert.True(t, IsMobile(767))
	assert.False(t, IsMobile(768))
	assert.True(t, IsMobile(0))
}

func TestDeviceTier_Compact(t *testing.T) {
	assert.True(t, TierMobile.Compact())
	assert.True(t, TierTablet.Compact())
	assert.False(t, TierLaptop.Compact())
	assert.False(t, TierDesktop.Compact())
	assert.False(t, DeviceTier("watch").IsValid())
}

func TestTierFor(t *testing.T) {
	assert.Equal(t, TierDesktop, TierFor(0, false))
	assert.Equal(t, TierMobile, TierFor(0, true))
}

type tierRecorder struct {
	mu    sync.Mutex
	tiers []DeviceTier
}

func (r *tierRecorder) record(tier DeviceTier) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tiers = append(r.tiers, tier)
}

func (r *tierRecorder) get() []DeviceTier {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]DeviceTier(nil), r.tiers...)
}

func TestObserver_DefaultsToDesktopBeforeMeasurement(t *testing.T) {
	source := NewWidthSource()
	rec := &tierRecorder{}
	obs := NewObserver(source, rec.record)

	assert.Equal(t, TierDesktop, obs.Tier())

	obs.Start(context.Background())
	defer obs.Stop()

	assert.Equal(t, []DeviceTier{TierDesktop}, rec.get())
}

func TestObserver_EmitsOnMountAndOnChange(t *testing.T) {
	source := NewWidthSource()
	source.Set(700)

	rec := &tierRecorder{}
	obs := NewObserver(source, rec.record)
	obs.Start(context.Background())
	defer obs.Stop()

	source.Set(1000)
	source.Set(1010) // same tier, no emission
	source.Set(1440)

	assert.Equal(t, []DeviceTier{TierMobile, TierTablet, TierDesktop}, rec.get())
	assert.Equal(t, TierDesktop, obs.Tier())
}

func TestObserver_StopReleasesSubscription(t *testing.T) {
	source := NewWidthSource()
	rec := &tierRecorder{}
	obs := NewObserver(source, rec.record)

	obs.Start(context.Background())
	require.Equal(t, 1, source.SubscriberCount())

	obs.Stop()
	obs.Stop()
	assert.Equal(t, 0, source.SubscriberCount())

	source.Set(500)
	assert.Equal(t, []DeviceTier{TierDesktop}, rec.get())
}

func TestObserver_ContextCancelReleasesSubscription(t *testing.T) {
	source := NewWidthSource()
	obs := NewObserver(source, nil)

	ctx, cancel := context.WithCancel(context.Background())
	obs.Start(ctx)
	require.Equal(t, 1, source.SubscriberCount())

	cancel()
	assert.Eventually(t, func() bool {
		return source.SubscriberCount() == 0
	}, time.Second, 5*time.Millisecond)
}

func TestWidthSource_NegativeWidthClamped(t *testing.T) {
	source := NewWidthSource()
	_, ok := source.Width()
	assert.False(t, ok)

	source.Set(-20)
	w, ok := source.Width()
	assert.True(t, ok)
	assert.Equal(t, 0, w)
}
