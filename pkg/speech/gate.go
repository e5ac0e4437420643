// Package speech captures spoken commands and speaks replies.
package speech

import "time"

// Gate tracks whether a stream is in a phrase using RMS level with
// hysteresis. It opens after Attack of audio at or above OnLevel and
// closes after Release of audio below OffLevel.
type Gate struct {
	OnLevel  float64
	OffLevel float64
	Attack   time.Duration
	Release  time.Duration

	open  bool
	above time.Duration
	below time.Duration
}

// NewGate returns a gate that opens at threshold and closes after pause
// of audio under 80% of threshold.
func NewGate(threshold float64, pause time.Duration) *Gate {
	return &Gate{
		OnLevel:  threshold,
		OffLevel: threshold * 0.8,
		Attack:   30 * time.Millisecond,
		Release:  pause,
	}
}

// Feed advances the gate by one chunk of length d at the given RMS and
// reports whether the gate changed state.
func (g *Gate) Feed(rms float64, d time.Duration) bool {
	switch {
	case rms >= g.OnLevel:
		g.above += d
		g.below = 0
		if !g.open && g.above >= g.Attack {
			g.open = true
			return true
		}
	case rms < g.OffLevel:
		g.below += d
		g.above = 0
		if g.open && g.below >= g.Release {
			g.open = false
			return true
		}
	default:
		// Between the levels neither counter advances.
		g.above = 0
	}
	return false
}

// Open reports whether a phrase is in progress.
func (g *Gate) Open() bool { return g.open }

// Silence returns how long the level has been under OffLevel.
func (g *Gate) Silence() time.Duration { return g.below }

// Reset returns the gate to the closed state.
func (g *Gate) Reset() {
	g.open = false
	g.above = 0
	g.below = 0
}
