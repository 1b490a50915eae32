package canbus

import (
	"context"
	"strings"
)

// Router decodes every frame a Reader delivers and dispatches the
// decoded signals to whichever handler matches the frame's name,
// letting EstimatorFeed, CANMotor, and FluxFeed share one read loop
// instead of each opening their own socket.
type Router struct {
	mp       *Map
	exact    map[string]func(map[string]float64)
	prefixes []prefixHandler
}

type prefixHandler struct {
	prefix  string
	handler func(frameName string, values map[string]float64)
}

func NewRouter(mp *Map) *Router {
	return &Router{mp: mp, exact: map[string]func(map[string]float64){}}
}

// HandleFrame registers a handler for an exact frame name, e.g. a
// motor's torque-limit frame or a flux estimate frame.
func (r *Router) HandleFrame(name string, handler func(values map[string]float64)) {
	r.exact[name] = handler
}

// HandlePrefix registers a handler for any frame whose name starts
// with prefix, used for axis-indexed frame families like
// "estimator_0", "estimator_1", ...
func (r *Router) HandlePrefix(prefix string, handler func(frameName string, values map[string]float64)) {
	r.prefixes = append(r.prefixes, prefixHandler{prefix: prefix, handler: handler})
}

// Run decodes frames from r until ctx is cancelled or the read fails.
// Frames that don't match the map, or match no registered handler, are
// silently skipped: an un-mapped frame ID is expected bus noise, not an
// error.
func (r *Router) Run(ctx context.Context, reader Reader) error {
	for {
		frame, err := reader.ReadFrame(ctx)
		if err != nil {
			return err
		}
		fd, err := r.mp.FrameByID(uint32(frame.ID))
		if err != nil {
			continue
		}
		values, err := r.mp.DecodeFrame(uint32(frame.ID), frame.Data[:frame.Length])
		if err != nil {
			continue
		}
		if h, ok := r.exact[fd.Name]; ok {
			h(values)
		}
		for _, p := range r.prefixes {
			if strings.HasPrefix(fd.Name, p.prefix) {
				p.handler(fd.Name, values)
			}
		}
	}
}
