package axis

// AnticoggingConfig holds the tunables for the online anti-cogging
// learner (spec §4.5) plus the persisted calibration artifact (§6).
type AnticoggingConfig struct {
	// AnticoggingEnabled gates whether the feed-forward lookup applies
	// once the map has been marked valid via Axis.SetAnticoggingValid
	// (it always applies while the learner itself is running). A
	// completed calibration run does not mark the map valid by itself.
	AnticoggingEnabled bool

	StartVel     float64
	EndVel       float64
	StartGain    float64
	EndGain      float64
	EndTolerance float64
	VelRampRate  float64
	MaxTorque    float64

	// CoggingMap is the fixed-length circular torque-correction table
	// (spec I5: length fixed at configuration time, indexed modulo its
	// length).
	CoggingMap []float64

	// PreCalibrated is set once a calibration run completes (spec §4.5
	// step 10) and is the input the persistence layer uses to decide
	// whether to set AnticoggingValid on load (spec §9 open question d).
	PreCalibrated bool
}

// Config is the axis's stable-across-a-tick configuration, mutated only
// by the operator command surface between ticks (spec §3).
type Config struct {
	ControlMode ControlMode
	InputMode   InputMode

	PosGain           float64
	VelGain           float64
	VelIntegratorGain float64

	VelLimit                  float64
	EnableVelLimit            bool
	VelLimitTolerance         float64
	EnableOverspeedError      bool
	EnableCurrentModeVelLimit bool

	EnableGainScheduling bool
	GainSchedulingWidth  float64

	VelRampRate    float64
	TorqueRampRate float64
	Inertia        float64

	InputFilterBandwidth float64

	CircularSetpoints     bool
	CircularSetpointRange float64

	AxisToMirror int
	MirrorRatio  float64

	Anticogging AnticoggingConfig
}

// DefaultConfig returns a Config with the anti-cogging tunables, the
// overspeed tolerance, the gain-scheduling width, the input filter
// bandwidth, the circular setpoint range and the mirror ratio filled in.
// PosGain, VelGain, VelIntegratorGain, VelLimit and Inertia are left at
// zero; with EnableCurrentModeVelLimit on and VelLimit and VelGain zero,
// the torque-mode soft velocity limit clamps the output to zero.
func DefaultConfig() Config {
	return Config{
		ControlMode:               ControlModeTorque,
		InputMode:                 InputModePassthrough,
		VelLimitTolerance:         1.2,
		EnableCurrentModeVelLimit: true,
		GainSchedulingWidth:       1.0,
		Inertia:                   0,
		InputFilterBandwidth:      2.0,
		CircularSetpointRange:     1.0,
		MirrorRatio:               1.0,
		Anticogging: AnticoggingConfig{
			StartVel:     0.4,
			EndVel:       0.2,
			StartGain:    25,
			EndGain:      5,
			EndTolerance: 0.01,
			VelRampRate:  0.1,
			MaxTorque:    0.5,
		},
	}
}
