package persist

import (
	"path/filepath"
	"testing"

	"motorcore/axis"
)

type noopMotor struct{}

func (noopMotor) MaxAvailableTorque() float64 { return 10 }

type noopEstimator struct{}

func (noopEstimator) PosEstimateLinear() axis.Optional[float64]   { return axis.None[float64]() }
func (noopEstimator) PosEstimateCircular() axis.Optional[float64] { return axis.None[float64]() }
func (noopEstimator) PosWrap() axis.Optional[float64]             { return axis.None[float64]() }
func (noopEstimator) VelEstimate() axis.Optional[float64]         { return axis.None[float64]() }
func (noopEstimator) PosCPR() axis.Optional[float64]              { return axis.None[float64]() }

type noopTrajectory struct{}

func (noopTrajectory) PlanTrapezoidal(goal, p0, v0, velLimit, accelLimit, decelLimit float64) {}
func (noopTrajectory) Eval(t float64) axis.TrajectoryStep                                     { return axis.TrajectoryStep{} }
func (noopTrajectory) FinalTime() float64                                                     { return 0 }

func newTestAxis(mapLen int) *axis.Axis {
	cfg := axis.DefaultConfig()
	cfg.Anticogging.CoggingMap = make([]float64, mapLen)
	return axis.New(cfg, 8000, noopMotor{}, noopEstimator{}, noopTrajectory{})
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cogging.json")

	a := newTestAxis(4)
	cfg := a.Config()
	cfg.Anticogging.CoggingMap[0] = 1.5
	cfg.Anticogging.CoggingMap[2] = -0.75
	cfg.Anticogging.PreCalibrated = true
	a.ApplyConfig(cfg)

	if err := Save(path, a.Config().Anticogging); err != nil {
		t.Fatalf("Save: %v", err)
	}

	b := newTestAxis(4)
	snap, err := Load(path, b)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !snap.PreCalibrated {
		t.Errorf("snapshot PreCalibrated = false, want true")
	}
	got := b.Config().Anticogging.CoggingMap
	if got[0] != 1.5 || got[2] != -0.75 {
		t.Errorf("cogging map after load = %v, want [1.5 0 -0.75 0]", got)
	}
	if !b.AnticoggingValid() {
		t.Errorf("AnticoggingValid() = false after loading a pre-calibrated snapshot")
	}
}

func TestLoadRejectsLengthMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cogging.json")

	a := newTestAxis(4)
	if err := Save(path, a.Config().Anticogging); err != nil {
		t.Fatalf("Save: %v", err)
	}

	b := newTestAxis(8)
	if _, err := Load(path, b); err == nil {
		t.Fatalf("expected a length-mismatch error")
	}
}
