package axis

import "math"

// runShaper executes the reference shaper for the configured InputMode
// (spec §4.2). It writes pos_setpoint/vel_setpoint/torque_setpoint (or,
// for INACTIVE, leaves them unchanged) and reports ok=false with the
// matching error bit already set when a mode fails.
func (a *Axis) runShaper() (ok bool) {
	switch a.cfg.InputMode {
	case InputModeInactive:
		return true

	case InputModePassthrough:
		a.posSetpoint = a.inputPos.Load()
		a.velSetpoint = a.inputVel.Load()
		a.torqueSetpoint = a.inputTorque.Load()
		return true

	case InputModeVelRamp:
		maxStep := math.Abs(a.Ts * a.cfg.VelRampRate)
		fullStep := a.inputVel.Load() - a.velSetpoint
		step := clamp(fullStep, -maxStep, maxStep)
		a.velSetpoint += step
		a.torqueSetpoint = (step / a.Ts) * a.cfg.Inertia
		return true

	case InputModeTorqueRamp:
		maxStep := math.Abs(a.Ts * a.cfg.TorqueRampRate)
		fullStep := a.inputTorque.Load() - a.torqueSetpoint
		step := clamp(fullStep, -maxStep, maxStep)
		a.torqueSetpoint += step
		return true

	case InputModePosFilter:
		deltaPos := a.inputPos.Load() - a.posSetpoint
		deltaVel := a.inputVel.Load() - a.velSetpoint
		accel := a.inputFilterKp*deltaPos + a.inputFilterKi*deltaVel
		a.torqueSetpoint = accel * a.cfg.Inertia
		a.velSetpoint += a.Ts * accel
		a.posSetpoint += a.Ts * a.velSetpoint
		return true

	case InputModeMirror:
		return a.runMirrorShaper()

	case InputModeTrapTraj:
		return a.runTrapTrajShaper()

	default:
		a.err.set(ErrorInvalidInputMode)
		return false
	}
}

func (a *Axis) runMirrorShaper() bool {
	if a.mirrors == nil {
		a.err.set(ErrorInvalidMirrorAxis)
		return false
	}
	src, ok := a.mirrors.Axis(a.cfg.AxisToMirror)
	if !ok {
		a.err.set(ErrorInvalidMirrorAxis)
		return false
	}
	otherPos, posOK := src.PosEstimateLinear().Get()
	otherVel, velOK := src.VelEstimate().Get()
	if !posOK || !velOK {
		a.err.set(ErrorInvalidEstimate)
		return false
	}
	a.posSetpoint = otherPos * a.cfg.MirrorRatio
	a.velSetpoint = otherVel * a.cfg.MirrorRatio
	return true
}

func (a *Axis) runTrapTrajShaper() bool {
	if a.inputPosUpdated.Load() {
		a.MoveToPos(a.inputPos.Load())
		a.inputPosUpdated.Store(false)
	}
	if a.trajectoryDone {
		return true
	}
	if a.trajT > a.trajectory.FinalTime() {
		a.cfg.ControlMode = ControlModePosition
		a.posSetpoint = a.inputPos.Load()
		a.velSetpoint = 0
		a.torqueSetpoint = 0
		a.trajectoryDone = true
		return true
	}
	step := a.trajectory.Eval(a.trajT)
	a.posSetpoint = step.Y
	a.velSetpoint = step.Yd
	a.torqueSetpoint = step.Ydd * a.cfg.Inertia
	a.trajT += a.Ts
	return true
}
