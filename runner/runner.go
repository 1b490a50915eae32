package runner

import (
	"context"
	"fmt"
	"time"

	"motorcore/axis"
	"motorcore/canbus"
	"motorcore/telemetry"
)

// RunnerConfig is the set of knobs cmd/axisd exposes as flags.
type RunnerConfig struct {
	ScenarioPath string
	TickHz       float64
	AxisLabel    string
}

// Runner ticks an axis.Axis at a fixed rate, driving its command
// surface from a Scenario and handing the resulting torque to a motor
// sink. It mirrors the teacher's select{ctx.Done, ticker.C} loop
// shape, but the payload per tick is Axis.Update rather than a single
// CAN transmit.
type Runner struct {
	cfg  RunnerConfig
	log  *telemetry.AxisLogger
	a    *axis.Axis
	mot  *canbus.CANMotor
	scen Scenario

	nextSegment int
}

func NewRunner(cfg RunnerConfig, log *telemetry.Logger, a *axis.Axis, mot *canbus.CANMotor) (*Runner, error) {
	scen, err := LoadScenario(cfg.ScenarioPath)
	if err != nil {
		return nil, fmt.Errorf("load scenario: %w", err)
	}
	return &Runner{cfg: cfg, log: log.ForAxis(cfg.AxisLabel), a: a, mot: mot, scen: scen}, nil
}

func (r *Runner) Run(ctx context.Context) error {
	ts := 1.0 / r.cfg.TickHz
	period := time.Duration(ts * float64(time.Second))

	r.log.Info("starting: scenario=%s duration=%.2fs tick_hz=%.0f",
		r.scen.Meta.Name, r.scen.Timing.DurationS, r.cfg.TickHz)

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	start := time.Now()
	endAfter := time.Duration(r.scen.Timing.DurationS * float64(time.Second))

	var ticks uint64
	logEvery := uint64(r.cfg.TickHz)
	if r.scen.Timing.LogHz > 0 {
		logEvery = uint64(r.cfg.TickHz / r.scen.Timing.LogHz)
	}
	if logEvery == 0 {
		logEvery = 1
	}

	for {
		select {
		case <-ctx.Done():
			r.log.Warn("context canceled after %d ticks", ticks)
			return ctx.Err()

		case now := <-ticker.C:
			elapsed := now.Sub(start)
			if elapsed > endAfter {
				r.log.Info("scenario complete, ticks=%d", ticks)
				return nil
			}

			r.applyDueSegments(elapsed.Seconds())

			ok := r.a.Update()
			if !ok {
				telemetry.ReportAxisError(r.log, r.a)
			} else if r.mot != nil {
				if err := r.mot.SendTorque(ctx, r.a.TorqueOutput()); err != nil {
					r.log.Error("send torque: %v", err)
				}
			}

			ticks++
			if ticks%logEvery == 0 {
				r.log.Debug("t=%.3f torque=%.3f pos_sp=%.3f vel_sp=%.3f err=%s",
					elapsed.Seconds(), r.a.TorqueOutput(),
					r.a.PosSetpoint(), r.a.VelSetpoint(), r.a.Error())
			}
		}
	}
}

func (r *Runner) applyDueSegments(t float64) {
	for r.nextSegment < len(r.scen.Segments) && r.scen.Segments[r.nextSegment].T0 <= t {
		r.applySegment(r.scen.Segments[r.nextSegment])
		r.nextSegment++
	}
}

func (r *Runner) applySegment(s ScenarioSegment) {
	if s.ControlMode != nil {
		if cm, ok := parseControlMode(*s.ControlMode); ok {
			cfg := r.a.Config()
			cfg.ControlMode = cm
			r.a.ApplyConfig(cfg)
		} else {
			r.log.Warn("unknown control_mode %q", *s.ControlMode)
		}
	}
	if s.InputMode != nil {
		if im, ok := parseInputMode(*s.InputMode); ok {
			cfg := r.a.Config()
			cfg.InputMode = im
			r.a.ApplyConfig(cfg)
		} else {
			r.log.Warn("unknown input_mode %q", *s.InputMode)
		}
	}
	if s.InputPos != nil {
		r.a.SetInputPos(*s.InputPos)
	}
	if s.InputVel != nil {
		r.a.SetInputVel(*s.InputVel)
	}
	if s.InputTorque != nil {
		r.a.SetInputTorque(*s.InputTorque)
	}
	if s.ClosedLoopActive != nil {
		r.a.SetClosedLoopActive(*s.ClosedLoopActive)
	}
	if s.MoveToPos != nil {
		r.a.MoveToPos(*s.MoveToPos)
	}
	if s.MoveIncremental != nil {
		r.a.MoveIncremental(*s.MoveIncremental, s.MoveIncrementalFromInputPos)
	}
	if s.StartAnticoggingCalibration {
		r.a.StartAnticoggingCalibration()
	}
	if s.StopAnticoggingCalibration {
		r.a.StopAnticoggingCalibration()
	}
	if s.Comment != "" {
		r.log.Info("%s", s.Comment)
	}
}

func parseControlMode(s string) (axis.ControlMode, bool) {
	switch s {
	case "voltage":
		return axis.ControlModeVoltage, true
	case "torque":
		return axis.ControlModeTorque, true
	case "velocity":
		return axis.ControlModeVelocity, true
	case "position":
		return axis.ControlModePosition, true
	default:
		return 0, false
	}
}

func parseInputMode(s string) (axis.InputMode, bool) {
	switch s {
	case "inactive":
		return axis.InputModeInactive, true
	case "passthrough":
		return axis.InputModePassthrough, true
	case "vel_ramp":
		return axis.InputModeVelRamp, true
	case "torque_ramp":
		return axis.InputModeTorqueRamp, true
	case "pos_filter":
		return axis.InputModePosFilter, true
	case "mirror":
		return axis.InputModeMirror, true
	case "trap_traj":
		return axis.InputModeTrapTraj, true
	default:
		return 0, false
	}
}
