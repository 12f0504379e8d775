package fancontrol

import "time"

// pid turns a temperature reading into fan demand in percent. Demand rises
// as the reading climbs above target and is held to [0, 100].
//
// Not safe for concurrent use.
type pid struct {
	kp, ki, kd float64
	target     float64

	// sum is the integral term already multiplied by ki, kept inside the
	// output range so a long cool spell does not delay the next spin-up.
	sum  float64
	prev float64
	seen bool
}

func newPID(kp, ki, kd, targetC float64) *pid {
	return &pid{kp: kp, ki: ki, kd: kd, target: targetC}
}

// update returns 0 for a non-positive dt without touching controller state.
func (p *pid) update(tempC float64, dt time.Duration) float64 {
	if dt <= 0 {
		return 0
	}
	sec := dt.Seconds()
	over := tempC - p.target

	p.sum = clamp(p.sum+p.ki*over*sec, 0, 100)

	var slope float64
	if p.seen {
		slope = (over - p.prev) / sec
	}
	p.prev, p.seen = over, true

	return clamp(p.kp*over+p.sum+p.kd*slope, 0, 100)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
