package canbus

import "sync/atomic"

// FluxFeed implements axis.FluxSource for an induction motor whose
// rotor flux estimate arrives as a CAN signal rather than being
// computed in-process. MinFlux is a static floor set at construction;
// RotorFlux is refreshed by the decode goroutine via SetRotorFlux.
type FluxFeed struct {
	minFlux       float64
	rotorFluxBits atomic.Uint64
}

func NewFluxFeed(minFlux float64) *FluxFeed {
	return &FluxFeed{minFlux: minFlux}
}

func (f *FluxFeed) SetRotorFlux(v float64) { f.rotorFluxBits.Store(floatBits(v)) }

func (f *FluxFeed) RotorFlux() float64 { return floatFromBits(f.rotorFluxBits.Load()) }

func (f *FluxFeed) MinFlux() float64 { return f.minFlux }

// Register wires a decode handler for the named flux frame.
func (f *FluxFeed) Register(r *Router, fluxFrameName, rotorFluxKey string) {
	r.HandleFrame(fluxFrameName, func(values map[string]float64) {
		f.SetRotorFlux(values[rotorFluxKey])
	})
}
