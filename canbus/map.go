package canbus

import "sort"

// SignalDef describes one physical-value signal packed into a frame,
// using the usual factor/offset linear scaling of a DBC-style map.
type SignalDef struct {
	Name       string
	StartBit   int
	BitLength  int
	Signed     bool
	Factor     float64
	Offset     float64
	Min        float64
	Max        float64
	Default    float64
	Unit       string
	Comment    string
	Endianness string // only "little" supported
}

// FrameDef is one CAN frame's wire layout. Unlike a DBC's per-frame
// transmit cycle, this repo decodes every received frame as it arrives
// in one Router loop and transmits only from the axis tick, so there is
// no per-frame cycle or direction to carry here.
type FrameDef struct {
	ID      uint32
	Name    string
	DLC     int
	Signals []SignalDef
}

// Map is a CSV-loaded CAN signal map: the wire-format contract between
// an axis's estimator/motor ports and the bus carrying them.
type Map struct {
	ByID   map[uint32]*FrameDef
	ByName map[string]*FrameDef
}

func (m *Map) FrameNames() []string {
	out := make([]string, 0, len(m.ByName))
	for k := range m.ByName {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
