package axis

// Update runs one control-loop tick (spec §4.1). A failing tick sets the
// relevant error bit, leaves TorqueOutput unchanged, and returns false;
// the caller is expected to stop driving the motor. On success,
// TorqueOutput is the newly commanded torque.
func (a *Axis) Update() bool {
	posEstLinear := a.estimator.PosEstimateLinear()
	posEstCircular := a.estimator.PosEstimateCircular()
	posWrap := a.estimator.PosWrap()
	velEst := a.estimator.VelEstimate()
	posCPR := a.estimator.PosCPR()

	if a.cfg.CircularSetpoints {
		a.inputPos.Store(wrapPositive(a.inputPos.Load(), a.cfg.CircularSetpointRange))
	}

	if ok := a.runShaper(); !ok {
		return false
	}

	if a.learner.isActive() {
		pl, plOK := posEstLinear.Get()
		pc, pcOK := posCPR.Get()
		ve, veOK := velEst.Get()
		if !plOK || !pcOK || !veOK {
			a.err.set(ErrorInvalidEstimate)
			return false
		}
		if !a.closedLoopActive.Load() || a.cfg.ControlMode != ControlModeVelocity {
			a.learner.stop(&a.cfg, a.inputVel.Store)
			a.cfg.Anticogging.PreCalibrated = false
		} else {
			a.learner.step(&a.cfg, a.Ts, pl, pc, ve, a.velSetpoint, &a.inputVel)
		}
	}

	if ok := a.runCascade(posEstLinear, posEstCircular, posWrap, velEst, posCPR); !ok {
		return false
	}

	a.err.clearTransient()
	return true
}
