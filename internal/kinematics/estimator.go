package kinematics

// RateEstimator derives a live acceleration figure from successive speed samples.
// Samples closer together than PollInterval are ignored.
type RateEstimator struct {
	PollInterval float64

	lastSpeed float64
	lastTime  float64
	rate      float64
	primed    bool
}

// Update feeds a speed sample (m/s) taken at simulation time t (seconds).
func (e *RateEstimator) Update(speed, t float64) {
	if !e.primed {
		e.lastSpeed, e.lastTime, e.primed = speed, t, true
		return
	}
	dt := t - e.lastTime
	if dt <= 0 || dt < e.PollInterval {
		return
	}
	e.rate = (speed - e.lastSpeed) / dt
	e.lastSpeed, e.lastTime = speed, t
}

// Rate returns the latest estimate in m/s².
func (e *RateEstimator) Rate() float64 {
	return e.rate
}

// Reset forgets every sample.
func (e *RateEstimator) Reset() {
	*e = RateEstimator{PollInterval: e.PollInterval}
}
