package ratelimit

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func always(string) bool { return true }
func never(string) bool  { return false }

func TestAdmit_Spacing(t *testing.T) {
	tests := []struct {
		name string
		gap  int64
		want Decision
	}{
		{name: "109s is too soon", gap: 109, want: Throttled},
		{name: "110s is allowed", gap: 110, want: Accepted},
		{name: "111s is allowed", gap: 111, want: Accepted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New(DefaultInterval, ChargeBeforeRegistration)
			const start = 1_700_000_000

			assert.Equal(t, Accepted, l.Admit("dev", start, always))
			assert.Equal(t, tt.want, l.Admit("dev", start+tt.gap, always))

			last, ok := l.Last("dev")
			assert.True(t, ok)
			if tt.want == Accepted {
				assert.Equal(t, int64(start+tt.gap), last)
			} else {
				assert.Equal(t, int64(start), last, "ledger must not move on rejection")
			}
		})
	}
}

func TestAdmit_FirstInputNearEpoch(t *testing.T) {
	l := New(DefaultInterval, ChargeBeforeRegistration)
	// An absent entry counts as time zero.
	assert.Equal(t, Throttled, l.Admit("dev", 50, always))
	_, ok := l.Last("dev")
	assert.False(t, ok)
}

func TestAdmit_DevicesAreIndependent(t *testing.T) {
	l := New(DefaultInterval, ChargeBeforeRegistration)
	assert.Equal(t, Accepted, l.Admit("a", 1000, always))
	assert.Equal(t, Accepted, l.Admit("b", 1001, always))
	assert.Equal(t, Throttled, l.Admit("a", 1002, always))
	assert.Equal(t, 2, l.Len())
}

func TestAdmit_Policies(t *testing.T) {
	t.Run("charge before registration", func(t *testing.T) {
		l := New(DefaultInterval, ChargeBeforeRegistration)
		assert.Equal(t, Unregistered, l.Admit("ghost", 1000, never))

		last, ok := l.Last("ghost")
		assert.True(t, ok, "unregistered device still consumes a slot")
		assert.Equal(t, int64(1000), last)

		// Registered moments later, the device must still wait.
		assert.Equal(t, Throttled, l.Admit("ghost", 1050, always))
	})

	t.Run("charge after registration", func(t *testing.T) {
		l := New(DefaultInterval, ChargeAfterRegistration)
		assert.Equal(t, Unregistered, l.Admit("ghost", 1000, never))

		_, ok := l.Last("ghost")
		assert.False(t, ok)
		assert.Equal(t, Accepted, l.Admit("ghost", 1050, always))
	})
}

func TestAdmit_ZeroIntervalDisablesThrottling(t *testing.T) {
	l := New(0, ChargeBeforeRegistration)
	assert.Equal(t, Accepted, l.Admit("dev", 5, always))
	assert.Equal(t, Accepted, l.Admit("dev", 5, always))
}

func TestAdmit_ConcurrentSameDevice(t *testing.T) {
	l := New(DefaultInterval, ChargeBeforeRegistration)

	var accepted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Admit("dev", 10_000, always) == Accepted {
				accepted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), accepted.Load(), "exactly one near-simultaneous frame may pass")
}

func TestStrings(t *testing.T) {
	assert.Equal(t, "accepted", Accepted.String())
	assert.Equal(t, "throttled", Throttled.String())
	assert.Equal(t, "unregistered", Unregistered.String())
	assert.Equal(t, "charge-after-registration", ChargeAfterRegistration.String())
	assert.Equal(t, ChargeBeforeRegistration, New(time.Minute, ChargeBeforeRegistration).Policy())
}
