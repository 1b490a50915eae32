package telemetry

import "motorcore/axis"

// ReportAxisError logs the axis's current error bits at Error level if
// any are set. It is a no-op when the axis is error-free, so a runner
// can call it unconditionally after every failed tick without polluting
// the log on the common path.
func ReportAxisError(log *AxisLogger, a *axis.Axis) {
	if err := a.Error(); err != 0 {
		log.Error("%s", err)
	}
}
