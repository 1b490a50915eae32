package runner

import (
	"encoding/json"
	"fmt"
	"os"
)

// Scenario drives an axis's command surface over time: each segment is
// applied once, the instant its time window opens, rather than every
// tick — a segment is a step input, not a continuous override.
type Scenario struct {
	Meta     ScenarioMeta      `json:"meta"`
	Timing   ScenarioTiming    `json:"timing"`
	Segments []ScenarioSegment `json:"segments"`
}

type ScenarioMeta struct {
	Name        string `json:"name"`
	Version     int    `json:"version"`
	Description string `json:"description"`
}

type ScenarioTiming struct {
	DurationS float64 `json:"duration_s"`
	LogHz     float64 `json:"log_hz"`
}

// ScenarioSegment is a command issued at T0 seconds into the run.
// Pointer fields distinguish "not set" from "set to zero" the way the
// teacher's ActuatorCmd segment overrides distinguish an explicit zero
// torque command from an unset one.
type ScenarioSegment struct {
	T0 float64 `json:"t0"`

	ControlMode *string `json:"control_mode,omitempty"`
	InputMode   *string `json:"input_mode,omitempty"`

	InputPos    *float64 `json:"input_pos,omitempty"`
	InputVel    *float64 `json:"input_vel,omitempty"`
	InputTorque *float64 `json:"input_torque,omitempty"`

	ClosedLoopActive *bool `json:"closed_loop_active,omitempty"`

	MoveToPos *float64 `json:"move_to_pos,omitempty"`

	MoveIncremental             *float64 `json:"move_incremental,omitempty"`
	MoveIncrementalFromInputPos bool     `json:"move_incremental_from_input_pos,omitempty"`

	StartAnticoggingCalibration bool `json:"start_anticogging_calibration,omitempty"`
	StopAnticoggingCalibration  bool `json:"stop_anticogging_calibration,omitempty"`

	Comment string `json:"comment,omitempty"`
}

func LoadScenario(path string) (Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, fmt.Errorf("read scenario: %w", err)
	}
	var scen Scenario
	if err := json.Unmarshal(data, &scen); err != nil {
		return Scenario{}, fmt.Errorf("unmarshal scenario: %w", err)
	}
	if scen.Timing.DurationS <= 0 {
		return Scenario{}, fmt.Errorf("invalid duration_s: %v", scen.Timing.DurationS)
	}
	return scen, nil
}
