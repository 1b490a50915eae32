package canbus

import (
	"sync"
	"time"

	"motorcore/axis"
)

// axisEstimates is the latest decoded snapshot for one axis index plus
// the time it was last refreshed, used to decide whether a reading is
// still fresh enough to report as present.
type axisEstimates struct {
	posLinear, posCircular, posWrap, velEstimate, posCPR float64
	updatedAt                                            time.Time
}

// EstimatorFeed decodes estimator frames off a CAN bus into per-axis
// snapshots and serves them to the control loop as axis.EstimatorSource
// and axis.AxisRegistry. A reading older than Staleness is reported
// absent rather than returning a value the tick could act on unknowingly.
//
// The decode loop runs on its own goroutine; Snapshot reads are guarded
// by a mutex since the read happens from the real-time tick while the
// decoder writes from the bus goroutine.
type EstimatorFeed struct {
	mp        *Map
	frameBase string
	staleness time.Duration

	mu   sync.RWMutex
	axes map[int]*axisEstimates
}

func NewEstimatorFeed(mp *Map, frameBase string, staleness time.Duration) *EstimatorFeed {
	return &EstimatorFeed{
		mp:        mp,
		frameBase: frameBase,
		staleness: staleness,
		axes:      map[int]*axisEstimates{},
	}
}

// Register wires this feed into a Router: every frame named
// "<frameBase>_<axis index>" updates that axis's snapshot.
func (f *EstimatorFeed) Register(r *Router) {
	r.HandlePrefix(f.frameBase+"_", func(frameName string, values map[string]float64) {
		axisIdx, ok := axisIndexFromFrameName(frameName, f.frameBase)
		if !ok {
			return
		}
		f.update(axisIdx, values)
	})
}

func (f *EstimatorFeed) update(axisIdx int, values map[string]float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.axes[axisIdx]
	if !ok {
		e = &axisEstimates{}
		f.axes[axisIdx] = e
	}
	e.posLinear = values["pos_estimate_linear"]
	e.posCircular = values["pos_estimate_circular"]
	e.posWrap = values["pos_wrap"]
	e.velEstimate = values["vel_estimate"]
	e.posCPR = values["pos_cpr"]
	e.updatedAt = time.Now()
}

func (f *EstimatorFeed) fresh(axisIdx int) (*axisEstimates, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	e, ok := f.axes[axisIdx]
	if !ok {
		return nil, false
	}
	if f.staleness > 0 && time.Since(e.updatedAt) > f.staleness {
		return nil, false
	}
	cp := *e
	return &cp, true
}

// View returns an axis.EstimatorSource scoped to one axis index, for
// wiring directly into axis.New.
func (f *EstimatorFeed) View(index int) *EstimatorAxisView {
	return &EstimatorAxisView{feed: f, index: index}
}

// EstimatorAxisView adapts EstimatorFeed to a single axis index.
type EstimatorAxisView struct {
	feed  *EstimatorFeed
	index int
}

func (v *EstimatorAxisView) PosEstimateLinear() axis.Optional[float64] {
	e, ok := v.feed.fresh(v.index)
	if !ok {
		return axis.None[float64]()
	}
	return axis.Some(e.posLinear)
}

func (v *EstimatorAxisView) PosEstimateCircular() axis.Optional[float64] {
	e, ok := v.feed.fresh(v.index)
	if !ok {
		return axis.None[float64]()
	}
	return axis.Some(e.posCircular)
}

func (v *EstimatorAxisView) PosWrap() axis.Optional[float64] {
	e, ok := v.feed.fresh(v.index)
	if !ok {
		return axis.None[float64]()
	}
	return axis.Some(e.posWrap)
}

func (v *EstimatorAxisView) VelEstimate() axis.Optional[float64] {
	e, ok := v.feed.fresh(v.index)
	if !ok {
		return axis.None[float64]()
	}
	return axis.Some(e.velEstimate)
}

func (v *EstimatorAxisView) PosCPR() axis.Optional[float64] {
	e, ok := v.feed.fresh(v.index)
	if !ok {
		return axis.None[float64]()
	}
	return axis.Some(e.posCPR)
}

// Axis implements axis.AxisRegistry, so a feed can also serve MIRROR
// mode's cross-axis lookups without a separate collaborator.
func (f *EstimatorFeed) Axis(index int) (axis.MirrorSource, bool) {
	if _, ok := f.fresh(index); !ok {
		return nil, false
	}
	return f.View(index), true
}

func axisIndexFromFrameName(name, base string) (int, bool) {
	prefix := base + "_"
	if len(name) <= len(prefix) || name[:len(prefix)] != prefix {
		return 0, false
	}
	n := 0
	for _, c := range name[len(prefix):] {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}
