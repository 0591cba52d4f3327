package connection

import (
	"testing"
	"time"
)

func TestBackoff(t *testing.T) {
	t.Run("DefaultSequence", func(t *testing.T) {
		b := NewBackoff()

		// Expected base sequence (without jitter): 1s, 2s, 4s, 8s, 16s, 30s, 30s...
		expected := []time.Duration{
			1 * time.Second,
			2 * time.Second,
			4 * time.Second,
			8 * time.Second,
			16 * time.Second,
			30 * time.Second,
			30 * time.Second, // Should stay at max
		}

		for i, exp := range expected {
			base := b.Current()
			_ = b.Next() // Advance

			if base != exp {
				t.Errorf("Attempt %d: base = %v, want %v", i, base, exp)
			}
		}
	})

	t.Run("NonDecreasingUpToCap", func(t *testing.T) {
		b := NewBackoff()

		prev := time.Duration(0)
		for i := 0; i < 10; i++ {
			base := b.Current()
			if base < prev {
				t.Errorf("Attempt %d: base %v decreased from %v", i, base, prev)
			}
			if base > MaxBackoff {
				t.Errorf("Attempt %d: base %v exceeds cap %v", i, base, MaxBackoff)
			}
			prev = base
			b.Next()
		}
	})

	t.Run("JitterBounds", func(t *testing.T) {
		b := NewBackoff()

		// Each jittered sample must stay within [base, base*(1+JitterFactor)].
		for i := 0; i < 20; i++ {
			base := b.Current()
			delay := b.Peek()
			upper := time.Duration(float64(base) * (1 + JitterFactor))
			if delay < base || delay > upper {
				t.Errorf("Sample %d: %v outside [%v, %v]", i, delay, base, upper)
			}
		}

		// At least some samples should differ.
		samples := make([]time.Duration, 10)
		for i := range samples {
			samples[i] = b.Peek()
		}
		allSame := true
		for i := 1; i < len(samples); i++ {
			if samples[i] != samples[0] {
				allSame = false
				break
			}
		}
		if allSame {
			t.Error("All jittered samples are identical - jitter may not be working")
		}
	})

	t.Run("Reset", func(t *testing.T) {
		b := NewBackoff()

		for i := 0; i < 5; i++ {
			b.Next()
		}

		if b.Current() <= InitialBackoff {
			t.Error("Backoff should have increased")
		}
		if b.Attempts() != 5 {
			t.Errorf("Attempts() = %d, want 5", b.Attempts())
		}

		b.Reset()

		if b.Current() != InitialBackoff {
			t.Errorf("Current() = %v after reset, want %v", b.Current(), InitialBackoff)
		}
		if b.Attempts() != 0 {
			t.Errorf("Attempts() = %d after reset, want 0", b.Attempts())
		}
	})

	t.Run("CustomConfig", func(t *testing.T) {
		b := NewBackoffWithConfig(BackoffConfig{
			Initial:    100 * time.Millisecond,
			Max:        400 * time.Millisecond,
			Multiplier: 2.0,
		})

		want := []time.Duration{
			100 * time.Millisecond,
			200 * time.Millisecond,
			400 * time.Millisecond,
			400 * time.Millisecond,
		}
		for i, exp := range want {
			if got := b.Current(); got != exp {
				t.Errorf("Attempt %d: base = %v, want %v", i, got, exp)
			}
			b.Next()
		}
	})
}

func TestStateString(t *testing.T) {
	states := map[State]string{
		StateDisconnected: "DISCONNECTED",
		StateConnecting:   "CONNECTING",
		StateConnected:    "CONNECTED",
		StateSyncing:      "SYNCING",
		StateSynced:       "SYNCED",
		StateReconnecting: "RECONNECTING",
	}
	for state, want := range states {
		if state.String() != want {
			t.Errorf("%d.String() = %q, want %q", state, state.String(), want)
		}
	}
}

func TestStateLive(t *testing.T) {
	live := []State{StateConnected, StateSyncing, StateSynced}
	dead := []State{StateDisconnected, StateConnecting, StateReconnecting}

	for _, s := range live {
		if !s.Live() {
			t.Errorf("%v.Live() = false, want true", s)
		}
	}
	for _, s := range dead {
		if s.Live() {
			t.Errorf("%v.Live() = true, want false", s)
		}
	}
}
