package telemetry

import (
	"context"

	"github.com/nerrad567/robotlan-core/internal/session"
)

// Handler consumes session events.
type Handler interface {
	Handle(ev session.Event)
}

// Run feeds events to every handler until events closes or ctx ends.
// Nil handlers are skipped.
func Run(ctx context.Context, events <-chan session.Event, handlers ...Handler) {
	active := handlers[:0:0]
	for _, h := range handlers {
		if h != nil {
			active = append(active, h)
		}
	}
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			for _, h := range active {
				h.Handle(ev)
			}
		case <-ctx.Done():
			return
		}
	}
}
