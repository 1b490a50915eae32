// Package trajectory implements the trapezoidal motion profile used by
// the axis's TRAP_TRAJ reference shaper.
package trajectory

import (
	"math"

	"github.com/pkg/errors"

	"motorcore/axis"
)

// Trapezoid plans and evaluates a trapezoidal (accelerate / cruise /
// decelerate) velocity profile between a start and goal position. It
// satisfies axis.TrajectoryPlanner.
//
// A move always ends at rest; the starting velocity is taken from the
// axis's current velocity setpoint, clamped into [0, velLimit] along
// the direction of travel, so the profile never reverses. When the
// clamp applies (a setpoint velocity against the direction of travel or
// above velLimit), the profile starts at the clamped velocity, not at v0.
type Trapezoid struct {
	dir  float64
	p0   float64
	goal float64

	v0, vPeak              float64
	accelLimit, decelLimit float64

	accelTime, cruiseTime, decelTime float64
	distAccel, distCruise            float64

	lastErr error
}

// PlanTrapezoidal plans a new profile. Non-positive limits are an
// error: the profile falls back to an instantaneous (zero-duration)
// move to goal rather than panicking or dividing by zero, and the
// rejection is recorded on Err.
func (t *Trapezoid) PlanTrapezoidal(goal, p0, v0, velLimit, accelLimit, decelLimit float64) {
	t.p0 = p0
	t.goal = goal
	t.lastErr = nil

	if err := validateLimits(velLimit, accelLimit, decelLimit); err != nil {
		t.lastErr = err
		t.dir = 0
		t.accelTime, t.cruiseTime, t.decelTime = 0, 0, 0
		t.distAccel, t.distCruise = 0, 0
		return
	}

	dist := goal - p0
	if dist == 0 {
		t.dir = 0
		t.accelTime, t.cruiseTime, t.decelTime = 0, 0, 0
		t.distAccel, t.distCruise = 0, 0
		return
	}

	dir := 1.0
	if dist < 0 {
		dir = -1.0
	}
	d := math.Abs(dist)
	v0Eff := clamp(v0*dir, 0, velLimit)

	t.dir = dir
	t.v0 = v0Eff
	t.accelLimit = accelLimit
	t.decelLimit = decelLimit

	vPeak := velLimit
	accelTime := (vPeak - v0Eff) / accelLimit
	decelTime := vPeak / decelLimit
	distAccel := v0Eff*accelTime + 0.5*accelLimit*accelTime*accelTime
	distDecel := vPeak*decelTime - 0.5*decelLimit*decelTime*decelTime

	if distAccel+distDecel > d {
		// Triangle profile: no cruise phase, solve for the peak
		// velocity that makes the accel and decel distances sum to d.
		vPeak = math.Sqrt((2*accelLimit*decelLimit*d + decelLimit*v0Eff*v0Eff) / (accelLimit + decelLimit))
		if vPeak < v0Eff {
			vPeak = v0Eff
		}
		accelTime = (vPeak - v0Eff) / accelLimit
		decelTime = vPeak / decelLimit
		distAccel = v0Eff*accelTime + 0.5*accelLimit*accelTime*accelTime
		distDecel = vPeak*decelTime - 0.5*decelLimit*decelTime*decelTime
		t.vPeak = vPeak
		t.accelTime = accelTime
		t.cruiseTime = 0
		t.decelTime = decelTime
		t.distAccel = distAccel
		t.distCruise = 0
		return
	}

	cruiseDist := d - distAccel - distDecel
	t.vPeak = vPeak
	t.accelTime = accelTime
	t.cruiseTime = cruiseDist / vPeak
	t.decelTime = decelTime
	t.distAccel = distAccel
	t.distCruise = cruiseDist
}

// Err returns the error from the most recent PlanTrapezoidal call, if
// its limits were rejected.
func (t *Trapezoid) Err() error { return t.lastErr }

func (t *Trapezoid) FinalTime() float64 {
	return t.accelTime + t.cruiseTime + t.decelTime
}

// Eval returns the position/velocity/acceleration at time t into the
// current profile. t before 0 or after FinalTime clamps to the
// profile's endpoints.
func (t *Trapezoid) Eval(tt float64) axis.TrajectoryStep {
	if t.dir == 0 {
		return axis.TrajectoryStep{Y: t.goal}
	}
	if tt < 0 {
		tt = 0
	}

	switch {
	case tt <= t.accelTime:
		pos := t.p0 + t.dir*(t.v0*tt+0.5*t.accelLimit*tt*tt)
		vel := t.dir * (t.v0 + t.accelLimit*tt)
		return axis.TrajectoryStep{Y: pos, Yd: vel, Ydd: t.dir * t.accelLimit}

	case tt <= t.accelTime+t.cruiseTime:
		tc := tt - t.accelTime
		pos := t.p0 + t.dir*(t.distAccel+t.vPeak*tc)
		return axis.TrajectoryStep{Y: pos, Yd: t.dir * t.vPeak, Ydd: 0}

	case tt <= t.FinalTime():
		td := tt - t.accelTime - t.cruiseTime
		pos := t.p0 + t.dir*(t.distAccel+t.distCruise+t.vPeak*td-0.5*t.decelLimit*td*td)
		vel := t.dir * (t.vPeak - t.decelLimit*td)
		return axis.TrajectoryStep{Y: pos, Yd: vel, Ydd: -t.dir * t.decelLimit}

	default:
		return axis.TrajectoryStep{Y: t.goal}
	}
}

func validateLimits(velLimit, accelLimit, decelLimit float64) error {
	if velLimit <= 0 {
		return errors.Errorf("trapezoid: velLimit must be positive, got %v", velLimit)
	}
	if accelLimit <= 0 {
		return errors.Errorf("trapezoid: accelLimit must be positive, got %v", accelLimit)
	}
	if decelLimit <= 0 {
		return errors.Errorf("trapezoid: decelLimit must be positive, got %v", decelLimit)
	}
	return nil
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
