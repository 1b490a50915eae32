package axis

import (
	"math"
	"testing"
)

// fakeEstimator is a test double for EstimatorSource with independently
// settable presence per field.
type fakeEstimator struct {
	posLinear, posCircular, posWrap, velEst, posCPR Optional[float64]
}

func (f *fakeEstimator) PosEstimateLinear() Optional[float64]   { return f.posLinear }
func (f *fakeEstimator) PosEstimateCircular() Optional[float64] { return f.posCircular }
func (f *fakeEstimator) PosWrap() Optional[float64]             { return f.posWrap }
func (f *fakeEstimator) VelEstimate() Optional[float64]         { return f.velEst }
func (f *fakeEstimator) PosCPR() Optional[float64]              { return f.posCPR }

type fakeMotor struct {
	maxTorque float64
}

func (f *fakeMotor) MaxAvailableTorque() float64 { return f.maxTorque }

type fakeTrajectory struct {
	tf   float64
	step TrajectoryStep
}

func (f *fakeTrajectory) PlanTrapezoidal(goal, p0, v0, velLimit, accelLimit, decelLimit float64) {}
func (f *fakeTrajectory) Eval(t float64) TrajectoryStep                                         { return f.step }
func (f *fakeTrajectory) FinalTime() float64                                                    { return f.tf }

const testTs = 1.0 / 8000.0

func newTestAxis(cfg Config) (*Axis, *fakeEstimator, *fakeMotor) {
	est := &fakeEstimator{}
	mot := &fakeMotor{maxTorque: 10}
	a := New(cfg, 8000, mot, est, &fakeTrajectory{})
	a.SetClosedLoopActive(true)
	return a, est, mot
}

// Scenario 1: PASSTHROUGH, torque mode.
func TestScenario_PassthroughTorqueMode(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ControlMode = ControlModeTorque
	cfg.InputMode = InputModePassthrough
	cfg.EnableCurrentModeVelLimit = false
	a, est, _ := newTestAxis(cfg)
	est.posLinear = Some(0.0)
	est.velEst = Some(0.0)
	est.posCPR = Some(0.0)

	a.SetInputTorque(2.0)

	if !a.Update() {
		t.Fatalf("update failed: %v", a.Error())
	}
	if got := a.TorqueOutput(); math.Abs(got-2.0) > 1e-9 {
		t.Errorf("torque_output = %v, want 2.0", got)
	}
}

// Scenario 2: VEL_RAMP single tick.
func TestScenario_VelRampSingleTick(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ControlMode = ControlModeVelocity
	cfg.InputMode = InputModeVelRamp
	cfg.VelGain = 0.1
	cfg.VelIntegratorGain = 0
	cfg.VelRampRate = 100
	cfg.Inertia = 1e-3
	a, est, _ := newTestAxis(cfg)
	est.posLinear = Some(0.0)
	est.velEst = Some(0.0)
	est.posCPR = Some(0.0)

	a.SetInputVel(5.0)

	if !a.Update() {
		t.Fatalf("update failed: %v", a.Error())
	}

	wantVelSetpoint := 0.0125
	if got := a.VelSetpoint(); math.Abs(got-wantVelSetpoint) > 1e-9 {
		t.Errorf("vel_setpoint = %v, want %v", got, wantVelSetpoint)
	}
	wantTorque := 0.10125
	if got := a.TorqueOutput(); math.Abs(got-wantTorque) > 1e-6 {
		t.Errorf("torque_output = %v, want %v", got, wantTorque)
	}
}

// Scenario 3: OVERSPEED.
func TestScenario_Overspeed(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ControlMode = ControlModeVelocity
	cfg.InputMode = InputModeInactive
	cfg.EnableOverspeedError = true
	cfg.VelLimit = 10
	cfg.VelLimitTolerance = 1.2
	a, est, _ := newTestAxis(cfg)
	est.posLinear = Some(0.0)
	est.velEst = Some(13.0)
	est.posCPR = Some(0.0)

	if a.Update() {
		t.Fatalf("expected tick to fail")
	}
	if !a.Error().Has(ErrorOverspeed) {
		t.Errorf("error = %v, want OVERSPEED set", a.Error())
	}
}

// Scenario 4: POSITION with gain scheduling.
func TestScenario_PositionGainScheduling(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ControlMode = ControlModePosition
	cfg.InputMode = InputModeInactive
	cfg.PosGain = 10
	cfg.GainSchedulingWidth = 1
	cfg.EnableGainScheduling = true
	cfg.VelGain = 1
	cfg.VelIntegratorGain = 0
	a, est, _ := newTestAxis(cfg)
	est.posLinear = Some(-0.25) // pos_err = pos_setpoint(0) - (-0.25) = 0.25
	est.velEst = Some(0.0)
	est.posCPR = Some(0.0)

	if !a.Update() {
		t.Fatalf("update failed: %v", a.Error())
	}
	want := 0.625
	if got := a.TorqueOutput(); math.Abs(got-want) > 1e-9 {
		t.Errorf("torque_output = %v, want %v", got, want)
	}
}

// Scenario 5: integrator anti-windup. The integrator is seeded nonzero
// so the saturated-tick decay is exercised; its magnitude never
// increases while saturated and torque_output stays within Tmax.
func TestScenario_AntiWindupDecay(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ControlMode = ControlModeVelocity
	cfg.InputMode = InputModeInactive
	cfg.VelGain = 1
	cfg.VelIntegratorGain = 1
	a, est, mot := newTestAxis(cfg)
	mot.maxTorque = 10
	est.posLinear = Some(0.0)
	est.velEst = Some(-100.0) // huge v_err, saturates every tick
	est.posCPR = Some(0.0)
	a.velIntegratorTorque = 5

	a.SetInputVel(0)

	prev := math.Inf(1)
	for i := 0; i < 50; i++ {
		if !a.Update() {
			t.Fatalf("update failed: %v", a.Error())
		}
		cur := math.Abs(a.VelIntegratorTorque())
		if cur > prev+1e-12 {
			t.Fatalf("tick %d: |vel_integrator_torque| increased: %v -> %v", i, prev, cur)
		}
		if math.Abs(a.TorqueOutput()) > 10+1e-9 {
			t.Fatalf("tick %d: torque_output exceeds Tmax: %v", i, a.TorqueOutput())
		}
		prev = cur
	}
}

// Scenario 6: trajectory completion.
func TestScenario_TrajectoryCompletion(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ControlMode = ControlModePosition
	cfg.InputMode = InputModeTrapTraj
	a, est, _ := newTestAxis(cfg)
	est.posLinear = Some(0.0)
	est.velEst = Some(0.0)
	est.posCPR = Some(0.0)

	traj := a.trajectory.(*fakeTrajectory)
	traj.tf = -1 // trajT(0) already exceeds final time: complete on first tick

	a.SetInputPos(5.0)
	a.SignalInputPosUpdated()

	if !a.Update() {
		t.Fatalf("update failed: %v", a.Error())
	}
	if !a.TrajectoryDone() {
		t.Errorf("expected trajectory_done")
	}
	if a.Config().ControlMode != ControlModePosition {
		t.Errorf("control_mode = %v, want POSITION", a.Config().ControlMode)
	}
	if got := a.VelSetpoint(); got != 0 {
		t.Errorf("vel_setpoint = %v, want 0", got)
	}
	if got := a.TorqueSetpoint(); got != 0 {
		t.Errorf("torque_setpoint = %v, want 0", got)
	}
	if got := a.PosSetpoint(); got != 5.0 {
		t.Errorf("pos_setpoint = %v, want 5.0", got)
	}
}

// Universal property: torque bound.
func TestProperty_TorqueBound(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ControlMode = ControlModeTorque
	cfg.InputMode = InputModePassthrough
	cfg.EnableCurrentModeVelLimit = false
	a, est, mot := newTestAxis(cfg)
	mot.maxTorque = 3
	est.posLinear = Some(0.0)
	est.velEst = Some(0.0)
	est.posCPR = Some(0.0)

	a.SetInputTorque(100)
	if !a.Update() {
		t.Fatalf("update failed")
	}
	if math.Abs(a.TorqueOutput()) > 3+1e-9 {
		t.Errorf("torque_output = %v exceeds Tmax=3", a.TorqueOutput())
	}
}

// Universal property: integrator reset below VELOCITY mode.
func TestProperty_IntegratorResetBelowVelocity(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ControlMode = ControlModeTorque
	cfg.InputMode = InputModeInactive
	a, est, _ := newTestAxis(cfg)
	est.posLinear = Some(0.0)
	est.velEst = Some(0.0)
	est.posCPR = Some(0.0)
	a.velIntegratorTorque = 42

	if !a.Update() {
		t.Fatalf("update failed")
	}
	if a.VelIntegratorTorque() != 0 {
		t.Errorf("vel_integrator_torque = %v, want 0", a.VelIntegratorTorque())
	}
}

// Universal property: estimate transience.
func TestProperty_EstimateTransience(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ControlMode = ControlModeVelocity
	cfg.InputMode = InputModeInactive
	a, est, _ := newTestAxis(cfg)
	est.posLinear = Some(0.0)
	est.posCPR = Some(0.0)
	// vel_estimate absent: tick must fail.

	if a.Update() {
		t.Fatalf("expected failure with absent vel_estimate")
	}
	if !a.Error().Has(ErrorInvalidEstimate) {
		t.Errorf("expected ErrorInvalidEstimate set")
	}

	est.velEst = Some(0.0)
	if !a.Update() {
		t.Fatalf("expected success once estimate present")
	}
	if a.Error().Has(ErrorInvalidEstimate) {
		t.Errorf("ErrorInvalidEstimate should be cleared after successful tick")
	}
}

// Universal property: sticky bits remain set until external clear.
func TestProperty_StickyErrorsPersist(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ControlMode = ControlModeVelocity
	cfg.InputMode = InputModeInactive
	cfg.EnableOverspeedError = true
	cfg.VelLimit = 1
	cfg.VelLimitTolerance = 1.0
	a, est, _ := newTestAxis(cfg)
	est.posLinear = Some(0.0)
	est.posCPR = Some(0.0)
	est.velEst = Some(5.0)

	a.Update()
	if !a.Error().Has(ErrorOverspeed) {
		t.Fatalf("expected OVERSPEED set")
	}

	est.velEst = Some(0.0)
	a.Update()
	if !a.Error().Has(ErrorOverspeed) {
		t.Errorf("OVERSPEED should remain sticky across successful ticks")
	}
	a.ClearErrors()
	if a.Error() != 0 {
		t.Errorf("expected errors cleared after ClearErrors")
	}
}

// Property: circular wrap idempotence.
func TestProperty_WrapIdempotence(t *testing.T) {
	xs := []float64{-5.5, -1, 0, 0.3, 1.9, 10.25}
	w := 2.0
	for _, x := range xs {
		once := wrapPM(x, w)
		twice := wrapPM(once, w)
		if math.Abs(once-twice) > 1e-12 {
			t.Errorf("wrapPM(%v) not idempotent: %v vs %v", x, once, twice)
		}
		if once < -w/2 || once >= w/2 {
			t.Errorf("wrapPM(%v)=%v out of [-w/2, w/2)", x, once)
		}
	}
}

// Property: feed-forward lookup is circular (period 1 in posCPR units).
func TestProperty_FeedForwardSymmetry(t *testing.T) {
	cogmap := []float64{1, 2, 3, 4}
	ps := []float64{0, 0.1, 0.37, 0.99, -0.2}
	for _, p := range ps {
		a := interpolate(p, cogmap)
		b := interpolate(p+1, cogmap)
		if math.Abs(a-b) > 1e-9 {
			t.Errorf("interpolate(%v)=%v != interpolate(%v+1)=%v", p, a, p, b)
		}
	}
}

// Property: gain scheduling V shape.
func TestProperty_GainSchedulingVShape(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ControlMode = ControlModePosition
	cfg.InputMode = InputModeInactive
	cfg.PosGain = 1
	cfg.GainSchedulingWidth = 2
	cfg.EnableGainScheduling = true
	cfg.VelGain = 1
	cfg.VelIntegratorGain = 0

	run := func(posErr float64) float64 {
		a, est, _ := newTestAxis(cfg)
		est.posLinear = Some(-posErr) // pos_setpoint(0) - posEst = posErr
		est.velEst = Some(0.0)
		est.posCPR = Some(0.0)
		a.Update()
		// vel_des = pos_gain*pos_err ; torque = (vel_gain*gs)*vel_des (since vel_estimate=0)
		// gs = |pos_err|/width for |pos_err|<=width, else 1.
		return a.TorqueOutput()
	}

	// At pos_err=0, gs=0 -> torque should be exactly 0.
	if got := run(0); math.Abs(got) > 1e-12 {
		t.Errorf("gs(0) torque = %v, want 0", got)
	}
	// At pos_err>=width, gs=1.
	atWidth := run(2.0)
	beyond := run(4.0)
	wantAtWidth := 1.0 * 2.0 * 1.0 // pos_gain*pos_err(vel_des) * vel_gain*gs(1)
	if math.Abs(atWidth-wantAtWidth) > 1e-9 {
		t.Errorf("gs(width) torque = %v, want %v", atWidth, wantAtWidth)
	}
	wantBeyond := 1.0 * 4.0 * 1.0
	if math.Abs(beyond-wantBeyond) > 1e-9 {
		t.Errorf("gs(beyond) torque = %v, want %v", beyond, wantBeyond)
	}
}

// Invariant: MIRROR mode fails with INVALID_MIRROR_AXIS when no
// registry is wired.
func TestMirrorMode_Errors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ControlMode = ControlModeTorque
	cfg.InputMode = InputModeMirror
	cfg.AxisToMirror = 0
	a, est, _ := newTestAxis(cfg)
	est.posLinear = Some(0.0)
	est.velEst = Some(0.0)
	est.posCPR = Some(0.0)

	if a.Update() {
		t.Fatalf("expected failure with no axis registry wired")
	}
	if !a.Error().Has(ErrorInvalidMirrorAxis) {
		t.Errorf("expected INVALID_MIRROR_AXIS, got %v", a.Error())
	}
}

// Anti-cogging learner: start seeds start_pos from the linear position
// estimate, not the CPR fraction, so turn_count reads zero on the tick
// right after Start instead of snapping to int(posLinear).
func TestAnticogging_StartSeedsFromLinearPosition(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ControlMode = ControlModeVelocity
	cfg.InputMode = InputModeInactive
	cfg.Anticogging.CoggingMap = make([]float64, 8)
	a, est, _ := newTestAxis(cfg)
	est.posLinear = Some(123.46)
	est.posCPR = Some(0.46)
	est.velEst = Some(0.0)

	a.StartAnticoggingCalibration()
	if !a.learner.isActive() {
		t.Fatalf("expected learner active after StartAnticoggingCalibration")
	}
	if got := a.learner.startPos; math.Abs(got-123.46) > 1e-9 {
		t.Errorf("startPos = %v, want 123.46 (the linear position, not the CPR fraction)", got)
	}

	if !a.Update() {
		t.Fatalf("update failed: %v", a.Error())
	}
	if a.learner.turnCount != 0 {
		t.Errorf("turnCount = %d, want 0 on the first tick after Start", a.learner.turnCount)
	}
}

// Anti-cogging learner: a tick with a nonzero velocity error deposits a
// Gaussian-weighted correction into the cogging map.
func TestAnticogging_StepDepositsIntoCoggingMap(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ControlMode = ControlModeVelocity
	cfg.InputMode = InputModeInactive
	cfg.VelIntegratorGain = 0.5 // start's integrator_gain = StartGain * this; must be nonzero to deposit anything
	// The deposit spans int(N/64) bins, so the map needs at least 64 entries.
	cfg.Anticogging.CoggingMap = make([]float64, 128)
	a, est, _ := newTestAxis(cfg)
	est.posLinear = Some(0.0)
	est.posCPR = Some(0.0)
	est.velEst = Some(0.05) // vel_setpoint stays 0 (INACTIVE): vel_error = -0.05 every tick

	a.StartAnticoggingCalibration()

	for i := 1; i <= 5; i++ {
		est.posLinear = Some(float64(i) * 0.05)
		est.posCPR = Some(float64(i) * 0.05)
		if !a.Update() {
			t.Fatalf("tick %d: update failed: %v", i, a.Error())
		}
	}

	var sum float64
	for _, v := range a.cfg.Anticogging.CoggingMap {
		sum += math.Abs(v)
	}
	if sum == 0 {
		t.Errorf("expected a nonzero deposit into the cogging map after stepping with a nonzero velocity error")
	}
}

// Anti-cogging learner: with vel_error held at zero, average_error and
// hence error_max stay 0, so when the first full turn completes
// range = error_max - end_tolerance is negative; step reports done, stops
// itself, and marks the map pre-calibrated.
func TestAnticogging_CompletesAndMarksPreCalibrated(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ControlMode = ControlModeVelocity
	cfg.InputMode = InputModeInactive
	cfg.Anticogging.CoggingMap = make([]float64, 8)
	cfg.Anticogging.StartVel = 0.4
	cfg.Anticogging.EndVel = 0.2
	cfg.Anticogging.EndTolerance = 0.01
	a, est, _ := newTestAxis(cfg)
	est.posCPR = Some(0.0)
	est.velEst = Some(0.0) // vel_error stays 0 (vel_setpoint is 0 in INACTIVE too): average_error converges immediately

	a.StartAnticoggingCalibration()
	if a.PreCalibrated() {
		t.Fatalf("expected PreCalibrated false before any calibration run has completed")
	}

	pos := 0.0
	done := false
	for i := 0; i < 5000 && !done; i++ {
		pos += 0.37 // 0.37 turn per tick: the first full turn completes on the third tick
		est.posLinear = Some(pos)
		est.posCPR = Some(math.Mod(pos, 1.0))
		if !a.Update() {
			t.Fatalf("tick %d: update failed: %v", i, a.Error())
		}
		done = !a.learner.isActive()
	}

	if !done {
		t.Fatalf("calibration never completed within the tick budget")
	}
	if !a.PreCalibrated() {
		t.Errorf("expected PreCalibrated after the learner stopped on completion")
	}
}

// Invariant: unknown input mode fails with INVALID_INPUT_MODE.
func TestInvalidInputMode(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ControlMode = ControlModeTorque
	cfg.InputMode = InputMode(99)
	a, est, _ := newTestAxis(cfg)
	est.posLinear = Some(0.0)
	est.velEst = Some(0.0)
	est.posCPR = Some(0.0)

	if a.Update() {
		t.Fatalf("expected failure for invalid input mode")
	}
	if !a.Error().Has(ErrorInvalidInputMode) {
		t.Errorf("expected INVALID_INPUT_MODE, got %v", a.Error())
	}
}
