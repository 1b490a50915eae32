package axis

import "math"

// runCascade implements the position -> velocity -> torque cascade
// (spec §4.3) given this tick's estimator snapshot. It writes
// torque_output and the velocity integrator on success.
func (a *Axis) runCascade(posEstLinear, posEstCircular, posWrap, velEst, posCPR Optional[float64]) bool {
	velDes := a.velSetpoint
	gainSchedulingMultiplier := 1.0

	if a.cfg.ControlMode >= ControlModePosition {
		var posErr float64
		if a.cfg.CircularSetpoints {
			pc, pcOK := posEstCircular.Get()
			pw, pwOK := posWrap.Get()
			if !pcOK || !pwOK {
				a.err.set(ErrorInvalidEstimate)
				return false
			}
			a.posSetpoint = wrapPositive(a.posSetpoint, pw)
			posErr = wrapPM(a.posSetpoint-pc, pw)
		} else {
			pl, plOK := posEstLinear.Get()
			if !plOK {
				a.err.set(ErrorInvalidEstimate)
				return false
			}
			posErr = a.posSetpoint - pl
		}

		velDes += a.cfg.PosGain * posErr

		absPosErr := math.Abs(posErr)
		if a.cfg.EnableGainScheduling && absPosErr <= a.cfg.GainSchedulingWidth {
			gainSchedulingMultiplier = absPosErr / a.cfg.GainSchedulingWidth
		}
	}

	if a.cfg.EnableVelLimit {
		velDes = clamp(velDes, -a.cfg.VelLimit, a.cfg.VelLimit)
	}

	if a.cfg.EnableOverspeedError {
		ve, ok := velEst.Get()
		if !ok {
			a.err.set(ErrorInvalidEstimate)
			return false
		}
		if math.Abs(ve) > a.cfg.VelLimitTolerance*a.cfg.VelLimit {
			a.err.set(ErrorOverspeed)
			return false
		}
	}

	velGain := a.cfg.VelGain
	velIntegratorGain := a.cfg.VelIntegratorGain
	if a.flux != nil {
		effectiveFlux := a.flux.RotorFlux()
		minFlux := a.flux.MinFlux()
		if math.Abs(effectiveFlux) < minFlux {
			effectiveFlux = math.Copysign(minFlux, effectiveFlux)
		}
		velGain /= effectiveFlux
		velIntegratorGain /= effectiveFlux
	}

	torque := a.torqueSetpoint

	if a.learner.isActive() || (a.anticoggingValid && a.cfg.Anticogging.AnticoggingEnabled) {
		pc, ok := posCPR.Get()
		if !ok {
			a.err.set(ErrorInvalidEstimate)
			return false
		}
		torque += interpolate(pc, a.cfg.Anticogging.CoggingMap)
	}

	var vErr float64
	if a.cfg.ControlMode >= ControlModeVelocity {
		ve, ok := velEst.Get()
		if !ok {
			a.err.set(ErrorInvalidEstimate)
			return false
		}
		vErr = velDes - ve
		torque += (velGain * gainSchedulingMultiplier) * vErr
		torque += a.velIntegratorTorque
	}

	if a.cfg.ControlMode < ControlModeVelocity && a.cfg.EnableCurrentModeVelLimit {
		ve, ok := velEst.Get()
		if !ok {
			a.err.set(ErrorInvalidEstimate)
			return false
		}
		tMax := (a.cfg.VelLimit - ve) * velGain
		tMin := (-a.cfg.VelLimit - ve) * velGain
		torque = clamp(torque, tMin, tMax)
	}

	tLim := a.motor.MaxAvailableTorque()
	limited := false
	if torque > tLim {
		limited = true
		torque = tLim
	}
	if torque < -tLim {
		limited = true
		torque = -tLim
	}

	if a.cfg.ControlMode < ControlModeVelocity {
		a.velIntegratorTorque = 0
	} else if limited {
		a.velIntegratorTorque *= antiWindupDecay
	} else {
		a.velIntegratorTorque += ((velIntegratorGain * gainSchedulingMultiplier) * a.Ts) * vErr
	}

	a.torqueOutput = torque
	return true
}

// antiWindupDecay is the fixed integrator decay factor applied on a
// saturated tick (spec §4.3, §9 open question b: "exposing them as
// configuration may be warranted" — not done here, matching the
// original firmware's hardcoded constant).
const antiWindupDecay = 0.99
