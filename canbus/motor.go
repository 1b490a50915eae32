package canbus

import (
	"context"
	"sync/atomic"

	"motorcore/telemetry"
)

// CANMotor implements axis.MotorPort by transmitting the commanded
// torque on every call to SendTorque and tracking the torque ceiling
// the drive last reported, decoded separately off a limits frame (by
// EstimatorFeed-style decode, wired by the caller).
//
// MaxAvailableTorque is read from a lock-free cache rather than the bus
// directly: it is polled once per tick from the real-time goroutine and
// must never block on a CAN round-trip.
type CANMotor struct {
	mp        *Map
	w         Writer
	frameName string
	torqueKey string

	maxTorqueBits atomic.Uint64
	log           *telemetry.Logger
}

func NewCANMotor(mp *Map, w Writer, frameName, torqueKey string, log *telemetry.Logger) *CANMotor {
	m := &CANMotor{mp: mp, w: w, frameName: frameName, torqueKey: torqueKey, log: log}
	m.SetMaxAvailableTorque(0)
	return m
}

// RegisterLimits wires a decode handler for the named limits frame,
// updating MaxAvailableTorque whenever a fresh reading arrives.
func (m *CANMotor) RegisterLimits(r *Router, limitsFrameName, maxTorqueKey string) {
	r.HandleFrame(limitsFrameName, func(values map[string]float64) {
		m.SetMaxAvailableTorque(values[maxTorqueKey])
	})
}

// SetMaxAvailableTorque is called by the frame-decode goroutine each
// time a limits frame arrives for this motor.
func (m *CANMotor) SetMaxAvailableTorque(v float64) {
	m.maxTorqueBits.Store(floatBits(v))
}

func (m *CANMotor) MaxAvailableTorque() float64 {
	return floatFromBits(m.maxTorqueBits.Load())
}

// SendTorque encodes and transmits the commanded torque. It is called
// from the host loop after Axis.Update, not from the tick itself.
func (m *CANMotor) SendTorque(ctx context.Context, torque float64) error {
	frame, err := m.mp.EncodeEinrideFrame(m.frameName, map[string]float64{m.torqueKey: torque})
	if err != nil {
		if m.log != nil {
			m.log.Error("encode %s: %v", m.frameName, err)
		}
		return err
	}
	return m.w.WriteFrame(ctx, frame)
}
