package axis

import (
	"math"
	"sync/atomic"

	"gonum.org/v1/gonum/stat/distuv"
)

// interpolate looks up a torque correction from the circular cogging
// map at normalized encoder-cycle position posCPR ∈ [0, 1) (spec §4.4).
// It is symmetric under posCPR -> posCPR+1 because the index is taken
// modulo the map length.
func interpolate(posCPR float64, cogmap []float64) float64 {
	n := len(cogmap)
	if n == 0 {
		return 0
	}
	idxf := posCPR * float64(n)
	idx := int(math.Floor(idxf))
	frac := idxf - float64(idx)
	idx = ((idx % n) + n) % n
	next := (idx + 1) % n
	return cogmap[idx]*(1-frac) + cogmap[next]*frac
}

// removeBias subtracts the map's mean from every entry (spec §4.5
// "De-bias utility (not called automatically)").
func removeBias(cogmap []float64) {
	if len(cogmap) == 0 {
		return
	}
	var sum float64
	for _, v := range cogmap {
		sum += v
	}
	mean := sum / float64(len(cogmap))
	for i := range cogmap {
		cogmap[i] -= mean
	}
}

// gaussianPDF is the zero-mean normal density used to spread a cogging
// correction across neighboring map bins (spec §4.5 step 9). Delegated
// to gonum rather than a hand-rolled exp/sqrt.
func gaussianPDF(sigma, x float64) float64 {
	if sigma <= 0 {
		return 0
	}
	return distuv.Normal{Mu: 0, Sigma: sigma}.Prob(x)
}

// anticoggingLearner is the online anti-cogging calibration procedure
// (spec §4.5). Its start/stop/step methods are grounded directly on
// Controller::{start,stop}_anticogging_calibration and
// Controller::anticogging_calibration in the original firmware.
type anticoggingLearner struct {
	active atomic.Bool

	savedVelIntegratorGain float64
	integratorGain         float64
	turnCount              int
	startPos               float64
	velErrorFiltered       float64
	averageError           float64
	errorMax               float64
	bandwidth              float64
}

func (l *anticoggingLearner) isActive() bool { return l.active.Load() }

// start seeds the learner from the operator's current velocity
// integrator gain and the current unbounded linear position, so that
// step's turn-count diff (posLinear - startPos) starts at zero rather
// than snapping to whatever integer part posLinear happens to have
// (spec §4.5 "Start").
func (l *anticoggingLearner) start(cfg *Config, posLinearNow float64, setInputVel func(float64)) {
	ac := &cfg.Anticogging
	setInputVel(ac.StartVel)
	l.startPos = posLinearNow
	l.savedVelIntegratorGain = cfg.VelIntegratorGain
	l.integratorGain = ac.StartGain * cfg.VelIntegratorGain
	l.bandwidth = ac.StartVel / 0.8
	l.averageError = 0
	l.turnCount = 0
	l.velErrorFiltered = 0
	l.errorMax = math.Inf(-1)
	cfg.VelIntegratorGain = 0
	l.active.Store(true)
}

// stop restores the operator's velocity integrator gain (spec §4.5
// "Stop").
func (l *anticoggingLearner) stop(cfg *Config, setInputVel func(float64)) {
	setInputVel(0)
	cfg.VelIntegratorGain = l.savedVelIntegratorGain
	l.active.Store(false)
}

// step runs one tick of the calibration procedure: it measures the
// residual velocity error, schedules its own gain/speed/width/bandwidth,
// deposits a Gaussian-weighted correction into the cogging map, and
// reports whether the run has converged (spec §4.5 "Per-tick step").
func (l *anticoggingLearner) step(cfg *Config, ts float64, posLinear, posCPR, velEstimate, velSetpoint float64, inputVel *atomicFloat64) (done bool) {
	ac := &cfg.Anticogging

	velError := velSetpoint - velEstimate
	l.velErrorFiltered += 10.0 * ts * (velError - l.velErrorFiltered)

	newTurn := int(posLinear-l.startPos) != l.turnCount
	oneTurnDone := l.turnCount > 0
	iv := inputVel.Load()
	if newTurn && oneTurnDone {
		if math.Abs(iv) < 1.10*ac.EndVel && l.turnCount > 10 {
			done = true
		}
	}

	l.turnCount = int(posLinear - l.startPos)
	oneTurn := l.turnCount > 0

	l.averageError += l.bandwidth * ts * (math.Abs(l.velErrorFiltered)/iv - l.averageError)

	width := float64(len(ac.CoggingMap)) / 64.0
	rampRate := ts * ac.VelRampRate

	if oneTurn {
		rng := l.errorMax - ac.EndTolerance
		if rng < 0 {
			done = true
		}
		scaleFactor := clamp((l.averageError-ac.EndTolerance)/rng, 0, 1)

		l.integratorGain = scaleFactor*(ac.StartGain-ac.EndGain)*l.savedVelIntegratorGain + ac.EndGain*l.savedVelIntegratorGain

		newVel := scaleFactor*(ac.StartVel-ac.EndVel) + ac.EndVel
		if math.Abs(newVel) < math.Abs(iv) {
			if iv-newVel > rampRate {
				inputVel.Store(iv - rampRate)
			} else {
				inputVel.Store(iv + 0.5*ts*(newVel-iv))
			}
		}

		n := float64(len(ac.CoggingMap))
		endWidth := 5.0 / n
		startWidth := 16.0 / n
		newWidth := n*scaleFactor*(startWidth-endWidth) + endWidth
		width += 1.0 * ts * (newWidth - width)

		endBandwidth := ac.EndVel / 4.0
		startBandwidth := ac.StartVel / 2.0
		newBandwidth := scaleFactor*(startBandwidth-endBandwidth) + endBandwidth
		l.bandwidth += 1.0 * ts * (newBandwidth - l.bandwidth)
	} else {
		l.errorMax = math.Max(l.errorMax, l.averageError)
	}

	n := len(ac.CoggingMap)
	if n > 0 {
		idxf := posCPR * float64(n)
		idx := int(math.Floor(idxf))
		frac := idxf - float64(idx)

		correctionRate := l.integratorGain * velError
		correction := correctionRate * ts

		w := int(width)
		sigma := width / 6.0
		for i := 0; i < w; i++ {
			offset := i - w/2
			x := frac + float64(offset)
			gaussVal := correction * gaussianPDF(sigma, x)
			binIdx := (((idx+offset)%n)+n)%n
			ac.CoggingMap[binIdx] += clamp(gaussVal, -ac.MaxTorque, ac.MaxTorque)
		}
	}

	if done {
		l.stop(cfg, inputVel.Store)
		cfg.Anticogging.PreCalibrated = true
	}
	return done
}
