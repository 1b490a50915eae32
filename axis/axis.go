package axis

import (
	"sync/atomic"
)

// Axis is one controlled motor unit: its stable configuration, the
// estimator/motor/trajectory ports it is wired to, and the runtime
// state mutated by Update (spec §2, §3).
type Axis struct {
	cfg Config

	motor      MotorPort
	estimator  EstimatorSource
	flux       FluxSource // nil unless the motor is an ACIM
	trajectory TrajectoryPlanner
	mirrors    AxisRegistry

	// Ts is the current-measurement period; 1/Fs.
	Ts float64
	Fs float64

	// Command-surface fields, written by a lower-priority context and
	// read once per tick by Update (spec §5, §9).
	inputPos         atomicFloat64
	inputVel         atomicFloat64
	inputTorque      atomicFloat64
	inputPosUpdated  atomic.Bool
	closedLoopActive atomic.Bool

	trajVelLimit    float64
	trajAccelLimit  float64
	trajDecelLimit  float64

	// Shaper outputs, cascade state, and learner state. These are only
	// ever touched from the tick goroutine.
	posSetpoint    float64
	velSetpoint    float64
	torqueSetpoint float64

	velIntegratorTorque float64
	torqueOutput        float64

	trajT           float64
	trajectoryDone  bool

	inputFilterKp float64
	inputFilterKi float64

	anticoggingValid bool

	learner anticoggingLearner

	err errorReporter
}

// New constructs an Axis wired to its ports, with the given tick rate
// and initial configuration.
func New(cfg Config, fs float64, motor MotorPort, estimator EstimatorSource, trajectory TrajectoryPlanner) *Axis {
	a := &Axis{
		cfg:        cfg,
		motor:      motor,
		estimator:  estimator,
		trajectory: trajectory,
		Fs:         fs,
		Ts:         1.0 / fs,
	}
	a.ApplyConfig(cfg)
	return a
}

// SetFluxSource wires an ACIM rotor-flux estimator; pass nil for
// non-induction motors (the default).
func (a *Axis) SetFluxSource(f FluxSource) { a.flux = f }

// SetAxisRegistry wires the mirror-mode axis lookup.
func (a *Axis) SetAxisRegistry(r AxisRegistry) { a.mirrors = r }

// ApplyConfig installs a new configuration and recomputes derived
// filter gains (spec §3 lifecycle, §4.1 update_filter_gains).
func (a *Axis) ApplyConfig(cfg Config) {
	a.cfg = cfg
	a.updateFilterGains()
}

// Config returns a copy of the current configuration.
func (a *Axis) Config() Config { return a.cfg }

// Reset zeros setpoints and the velocity integrator (spec §3 lifecycle).
func (a *Axis) Reset() {
	a.posSetpoint = 0
	a.velSetpoint = 0
	a.velIntegratorTorque = 0
	a.torqueSetpoint = 0
}

// TorqueOutput returns the most recently computed commanded torque.
func (a *Axis) TorqueOutput() float64 { return a.torqueOutput }

// Error returns the current sticky error bit-set.
func (a *Axis) Error() Error { return a.err.get() }

// ClearErrors performs the external reset named in spec §7.
func (a *Axis) ClearErrors() { a.err.clearAll() }

// TrajectoryDone reports whether the last planned trajectory has
// completed (spec §4.2 TRAP_TRAJ).
func (a *Axis) TrajectoryDone() bool { return a.trajectoryDone }

// PosSetpoint, VelSetpoint, TorqueSetpoint expose the shaper outputs for
// diagnostics and tests.
func (a *Axis) PosSetpoint() float64    { return a.posSetpoint }
func (a *Axis) VelSetpoint() float64    { return a.velSetpoint }
func (a *Axis) TorqueSetpoint() float64 { return a.torqueSetpoint }

// VelIntegratorTorque exposes the integrator accumulator (spec I2, I8
// anti-windup property) for tests.
func (a *Axis) VelIntegratorTorque() float64 { return a.velIntegratorTorque }

func (a *Axis) updateFilterGains() {
	bandwidth := a.cfg.InputFilterBandwidth
	if cap := 0.25 * a.Fs; bandwidth > cap {
		bandwidth = cap
	}
	a.inputFilterKi = 2.0 * bandwidth
	a.inputFilterKp = 0.25 * (a.inputFilterKi * a.inputFilterKi)
}
