// Package persist stores and restores the anti-cogging calibration
// artifact across restarts, so a motor doesn't have to recalibrate on
// every boot.
package persist

import (
	"encoding/json"
	"fmt"
	"os"

	"motorcore/axis"
)

const snapshotVersion = 1

// CoggingSnapshot is the on-disk form of one axis's anti-cogging
// calibration: the torque-correction table and its pre-calibrated flag.
// The learner tunables (start/end velocity, gains, tolerance) are not
// stored. Load rejects a snapshot whose map length differs from the
// axis's configured length rather than applying it.
type CoggingSnapshot struct {
	Version       int       `json:"version"`
	CoggingMap    []float64 `json:"cogging_map"`
	PreCalibrated bool      `json:"pre_calibrated"`
}

func Save(path string, cfg axis.AnticoggingConfig) error {
	snap := CoggingSnapshot{
		Version:       snapshotVersion,
		CoggingMap:    cfg.CoggingMap,
		PreCalibrated: cfg.PreCalibrated,
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cogging snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write cogging snapshot: %w", err)
	}
	return nil
}

// Load reads a snapshot and, on success, applies it to a: the cogging
// map is copied in place (so its length must already match) and
// AnticoggingValid is set only when the snapshot itself was marked
// pre-calibrated.
func Load(path string, a *axis.Axis) (CoggingSnapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return CoggingSnapshot{}, fmt.Errorf("read cogging snapshot: %w", err)
	}
	var snap CoggingSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return CoggingSnapshot{}, fmt.Errorf("unmarshal cogging snapshot: %w", err)
	}
	if snap.Version != snapshotVersion {
		return CoggingSnapshot{}, fmt.Errorf("cogging snapshot version %d unsupported (want %d)", snap.Version, snapshotVersion)
	}

	cfg := a.Config()
	if len(snap.CoggingMap) != len(cfg.Anticogging.CoggingMap) {
		return CoggingSnapshot{}, fmt.Errorf("cogging snapshot has %d bins, axis configured for %d",
			len(snap.CoggingMap), len(cfg.Anticogging.CoggingMap))
	}
	copy(cfg.Anticogging.CoggingMap, snap.CoggingMap)
	cfg.Anticogging.PreCalibrated = snap.PreCalibrated
	a.ApplyConfig(cfg)
	a.SetAnticoggingValid(snap.PreCalibrated)

	return snap, nil
}
