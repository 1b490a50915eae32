package axis

// Command surface (spec §6), invoked from the non-real-time context.
// The input setters, SignalInputPosUpdated and SetClosedLoopActive only
// touch atomic command fields. MoveToPos, MoveIncremental,
// SetTrajectoryLimits, the anti-cogging commands and SetAnticoggingValid
// also read or write plain fields that Update uses (setpoints, the
// trajectory timer, the learner, the config and the cogging map).

// SetInputPos writes input_pos. It does not, by itself, signal an edge;
// callers driving TRAP_TRAJ must also call SignalInputPosUpdated, which
// MoveIncremental does for them.
func (a *Axis) SetInputPos(v float64) { a.inputPos.Store(v) }

// SetInputVel writes input_vel.
func (a *Axis) SetInputVel(v float64) { a.inputVel.Store(v) }

// SetInputTorque writes input_torque.
func (a *Axis) SetInputTorque(v float64) { a.inputTorque.Store(v) }

// SignalInputPosUpdated latches the rising edge TRAP_TRAJ mode looks
// for (spec §4.2).
func (a *Axis) SignalInputPosUpdated() { a.inputPosUpdated.Store(true) }

// SetClosedLoopActive reflects the single boolean "closed-loop active"
// signal spec §1 keeps external to the core (owned by the axis state
// machine this package does not implement).
func (a *Axis) SetClosedLoopActive(active bool) { a.closedLoopActive.Store(active) }

// MoveToPos plans a new trapezoidal trajectory from the current setpoint
// to goal and resets the trajectory timer (spec §6, §4.2).
func (a *Axis) MoveToPos(goal float64) {
	a.trajectory.PlanTrapezoidal(goal, a.posSetpoint, a.velSetpoint,
		a.trajVelLimit, a.trajAccelLimit, a.trajDecelLimit)
	a.trajT = 0
	a.trajectoryDone = false
}

// SetTrajectoryLimits configures the velocity/accel/decel limits passed
// to the trajectory planner port on every MoveToPos call.
func (a *Axis) SetTrajectoryLimits(velLimit, accelLimit, decelLimit float64) {
	a.trajVelLimit = velLimit
	a.trajAccelLimit = accelLimit
	a.trajDecelLimit = decelLimit
}

// MoveIncremental either adds delta to input_pos or sets
// input_pos = pos_setpoint + delta, then signals the update edge (spec
// §6).
func (a *Axis) MoveIncremental(delta float64, fromInputPos bool) {
	if fromInputPos {
		a.inputPos.Add(delta)
	} else {
		a.inputPos.Store(a.posSetpoint + delta)
	}
	a.SignalInputPosUpdated()
}

// StartAnticoggingCalibration begins the online learner (spec §4.5
// "Start"). It is a no-op unless the axis is error-free and in
// closed-loop.
func (a *Axis) StartAnticoggingCalibration() {
	if a.err.get() != 0 || !a.closedLoopActive.Load() {
		return
	}
	a.learner.start(&a.cfg, a.posLinearSnapshot(), a.inputVel.Store)
}

// StopAnticoggingCalibration ends the learner, restoring the operator's
// velocity integrator gain (spec §4.5 "Stop").
func (a *Axis) StopAnticoggingCalibration() {
	a.learner.stop(&a.cfg, a.inputVel.Store)
}

// AnticoggingRemoveBias subtracts the mean of the cogging map from
// every entry. Not called automatically (spec §4.5, §9 open question c).
func (a *Axis) AnticoggingRemoveBias() {
	removeBias(a.cfg.Anticogging.CoggingMap)
}

// AnticoggingGetVal returns the cogging map entry at index, or 0 if out
// of range (spec §6).
func (a *Axis) AnticoggingGetVal(index int) float64 {
	m := a.cfg.Anticogging.CoggingMap
	if index < 0 || index >= len(m) {
		return 0
	}
	return m[index]
}

// AnticoggingSetVal writes the cogging map entry at index, a no-op if
// out of range (spec §6).
func (a *Axis) AnticoggingSetVal(index int, val float64) {
	m := a.cfg.Anticogging.CoggingMap
	if index < 0 || index >= len(m) {
		return
	}
	m[index] = val
}

// SetAnticoggingValid is how the persistence/startup sequence (spec §9
// open question d) declares a loaded cogging map usable for live
// feed-forward.
func (a *Axis) SetAnticoggingValid(valid bool) { a.anticoggingValid = valid }

// AnticoggingValid reports whether the persisted map is currently
// trusted for live feed-forward.
func (a *Axis) AnticoggingValid() bool { return a.anticoggingValid }

// PreCalibrated reports whether a calibration run has ever completed
// (spec §4.5 step 10).
func (a *Axis) PreCalibrated() bool { return a.cfg.Anticogging.PreCalibrated }

// posLinearSnapshot is read by StartAnticoggingCalibration to seed
// start_pos from the most recent unbounded linear position estimate,
// matching what step diffs against on every subsequent tick.
func (a *Axis) posLinearSnapshot() float64 {
	if v, ok := a.estimator.PosEstimateLinear().Get(); ok {
		return v
	}
	return 0
}
